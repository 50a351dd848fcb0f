// Package messaging sends and receives SMS for lead conversations. Carrier
// delivery failure is recorded on the message row, not surfaced as an API
// error.
package messaging

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/crestfund/lead-crm/internal/hub"
	"github.com/crestfund/lead-crm/internal/model"
	"github.com/crestfund/lead-crm/pkg/twilio"
)

// ErrConversationNotFound reports an outbound send aimed at a conversation
// that does not exist.
var ErrConversationNotFound = eris.New("messaging: conversation not found")

// Store is the slice of persistence the gateway needs.
type Store interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	InsertMessage(ctx context.Context, m model.Message) (*model.Message, error)
	UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, carrierID string) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	FindConversationByPhoneSuffix(ctx context.Context, digits string) (*model.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
}

// Service is the SMS gateway.
type Service struct {
	store      Store
	carrier    twilio.Client
	notifier   hub.Notifier
	fromNumber string
	limiter    *rate.Limiter
}

// NewService creates the gateway. The limiter throttles outbound carrier
// dispatch; one message per second with small bursts is well inside Twilio's
// long-code limits.
func NewService(s Store, carrier twilio.Client, notifier hub.Notifier, fromNumber string) *Service {
	return &Service{
		store:      s,
		carrier:    carrier,
		notifier:   notifier,
		fromNumber: fromNumber,
		limiter:    rate.NewLimiter(rate.Limit(1), 5),
	}
}

// Send records an outbound message as pending, dispatches it, and settles
// the row to sent or failed. The returned message carries the final status;
// carrier rejection does not produce an error.
func (s *Service) Send(ctx context.Context, conversationID, content, sentBy string) (*model.Message, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, eris.Wrapf(ErrConversationNotFound, "id %s", conversationID)
	}

	msg, err := s.store.InsertMessage(ctx, model.Message{
		ConversationID: conversationID,
		Direction:      model.DirectionOutbound,
		Content:        content,
		SentBy:         sentBy,
		Status:         model.MessageStatusPending,
	})
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "messaging: rate limit wait")
	}

	resp, sendErr := s.carrier.SendSMS(ctx, twilio.SendRequest{
		To:   conv.Phone,
		From: s.fromNumber,
		Body: content,
	})
	if sendErr != nil {
		zap.L().Warn("messaging: carrier send failed",
			zap.String("conversation_id", conversationID),
			zap.Error(sendErr))
		if err := s.store.UpdateMessageStatus(ctx, msg.ID, model.MessageStatusFailed, ""); err != nil {
			return nil, err
		}
		msg.Status = model.MessageStatusFailed
	} else {
		if err := s.store.UpdateMessageStatus(ctx, msg.ID, model.MessageStatusSent, resp.SID); err != nil {
			return nil, err
		}
		msg.Status = model.MessageStatusSent
		msg.CarrierID = resp.SID
	}

	if err := s.store.TouchConversation(ctx, conversationID); err != nil {
		zap.L().Warn("messaging: touch conversation failed", zap.Error(err))
	}

	s.notifier.NotifyRoom(conversationID, hub.Event{
		Type:    hub.EventNewMessage,
		Payload: msg,
	})

	return msg, nil
}

// HandleInbound routes a carrier webhook to a conversation by phone suffix.
// An unroutable message is logged and dropped; the webhook must still 200.
func (s *Service) HandleInbound(ctx context.Context, from, body, carrierID string) (*model.Message, error) {
	digits := model.PhoneDigits(from)
	conv, err := s.store.FindConversationByPhoneSuffix(ctx, digits)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		zap.L().Info("messaging: inbound message with no matching conversation",
			zap.String("from_digits", digits))
		return nil, nil
	}

	msg, err := s.store.InsertMessage(ctx, model.Message{
		ConversationID: conv.ID,
		Direction:      model.DirectionInbound,
		Content:        body,
		Status:         model.MessageStatusDelivered,
		CarrierID:      carrierID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchConversation(ctx, conv.ID); err != nil {
		zap.L().Warn("messaging: touch conversation failed", zap.Error(err))
	}

	// Inbound traffic is broadcast globally so the pipeline view updates
	// even for rooms nobody has open.
	s.notifier.NotifyAll(hub.Event{
		Type:           hub.EventNewMessage,
		ConversationID: conv.ID,
		Payload:        msg,
	})

	return msg, nil
}

// History lists a conversation's messages oldest first.
func (s *Service) History(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	return s.store.ListMessages(ctx, conversationID, limit)
}
