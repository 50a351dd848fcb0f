package model

import "time"

// Direction tells whether a message came from the lead or went to them.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageStatus tracks delivery lifecycle. Rows are immutable once delivered
// except for status and carrier-id updates.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusDelivered MessageStatus = "delivered"
)

// Message is a single inbound or outbound communication with a lead.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Direction      Direction     `json:"direction"`
	Content        string        `json:"content"`
	MessageType    string        `json:"message_type"`
	SentBy         string        `json:"sent_by,omitempty"`
	Status         MessageStatus `json:"status"`
	CarrierID      string        `json:"carrier_id,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}
