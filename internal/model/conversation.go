package model

import (
	"encoding/json"
	"time"
)

// State represents a conversation's position in the sales pipeline.
//
// The set below is what the UI presents, but the server does not enforce a
// transition table: any state may be set to any other state. Validity is a
// UI convention.
type State string

const (
	StateNew            State = "NEW"
	StateActive         State = "ACTIVE"
	StateInterested     State = "INTERESTED"
	StateFCSRunning     State = "FCS_RUNNING"
	StateCollectingInfo State = "COLLECTING_INFO"
	StateQualified      State = "QUALIFIED"
	StateSubmitted      State = "SUBMITTED"
	StateFunded         State = "FUNDED"
	StateDead           State = "DEAD"
	StatePaused         State = "PAUSED"
	StateArchived       State = "ARCHIVED"
)

// Conversation is a lead moving through the pipeline. Phone is the natural
// external key for inbound SMS routing and should be unique per conversation;
// when it is not, routing picks the most recently active match.
type Conversation struct {
	ID           string          `json:"id"`
	SequenceNum  int64           `json:"sequence_num"`
	BusinessName string          `json:"business_name"`
	DBA          string          `json:"dba,omitempty"`
	Phone        string          `json:"lead_phone"`
	Email        string          `json:"email,omitempty"`
	Address      string          `json:"address,omitempty"`
	City         string          `json:"city,omitempty"`
	USState      string          `json:"us_state,omitempty"`
	Zip          string          `json:"zip,omitempty"`
	OwnerName    string          `json:"owner_name,omitempty"`
	State        State           `json:"state"`
	CurrentStep  string          `json:"current_step,omitempty"`
	Priority     int             `json:"priority"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CSVImportID  string          `json:"csv_import_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	LastActivity time.Time       `json:"last_activity"`

	// Details is the lazily created 1:1 extension, joined on single-lead reads.
	Details *LeadDetails `json:"details,omitempty"`
}

// LeadDetails holds fields off the hot path of list views. One row per
// conversation, created on first write.
type LeadDetails struct {
	ConversationID    string     `json:"conversation_id"`
	BusinessType      string     `json:"business_type,omitempty"`
	MonthlyRevenue    *float64   `json:"monthly_revenue,omitempty"`
	AnnualRevenue     *float64   `json:"annual_revenue,omitempty"`
	BusinessStartDate string     `json:"business_start_date,omitempty"`
	TIBMonths         *int       `json:"time_in_business_months,omitempty"`
	FundingAmount     *float64   `json:"funding_amount,omitempty"`
	FactorRate        *float64   `json:"factor_rate,omitempty"`
	TermMonths        *int       `json:"term_months,omitempty"`
	FICOScore         *int       `json:"fico_score,omitempty"`
	Campaign          string     `json:"campaign,omitempty"`
	DateOfBirth       string     `json:"date_of_birth,omitempty"`
	TaxID             string     `json:"tax_id,omitempty"`
	SSN               string     `json:"ssn,omitempty"`
	FundingDate       *time.Time `json:"funding_date,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
