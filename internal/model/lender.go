package model

import (
	"encoding/json"
	"time"
)

// Lender is a row in the master roster, independent of any conversation.
// LenderMatch references lenders by name, not by foreign key.
type Lender struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ContactEmail    string    `json:"contact_email,omitempty"`
	ContactPhone    string    `json:"contact_phone,omitempty"`
	MinAmount       *float64  `json:"min_amount,omitempty"`
	MaxAmount       *float64  `json:"max_amount,omitempty"`
	Industries      []string  `json:"industries,omitempty"`
	States          []string  `json:"states,omitempty"`
	MinCreditScore  *int      `json:"min_credit_score,omitempty"`
	MinTIBMonths    *int      `json:"min_tib_months,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// LenderMatch is one lender's verdict for a conversation. The full set for a
// conversation is replaced atomically on every qualification run.
type LenderMatch struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	LenderName     string          `json:"lender_name"`
	Qualified      bool            `json:"qualified"`
	Tier           int             `json:"tier"`
	Position       int             `json:"position"`
	MatchScore     int             `json:"match_score"`
	MaxAmount      *float64        `json:"max_amount,omitempty"`
	FactorRate     *float64        `json:"factor_rate,omitempty"`
	TermMonths     *int            `json:"term_months,omitempty"`
	IsPreferred    bool            `json:"is_preferred"`
	BlockingReason string          `json:"blocking_reason,omitempty"`
	Requirements   json.RawMessage `json:"requirements,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// QualificationInput is the normalized financial profile sent to the
// qualification service.
type QualificationInput struct {
	ConversationID   string   `json:"conversation_id"`
	BusinessName     string   `json:"business_name"`
	MonthlyRevenue   float64  `json:"monthly_revenue"`
	TIBMonths        int      `json:"tib_months"`
	FICO             int      `json:"fico"`
	USState          string   `json:"us_state,omitempty"`
	Industry         string   `json:"industry,omitempty"`
	NegativeDays     int      `json:"negative_days"`
	DepositsPerMonth float64  `json:"deposits_per_month"`
	SoleProp         bool     `json:"sole_prop"`
	NonProfit        bool     `json:"non_profit"`
	MercuryBank      bool     `json:"mercury_bank"`
	RequestedPosition int     `json:"requested_position"`
}
