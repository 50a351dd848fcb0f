package model

import "time"

// FCSStatus is the lifecycle of a financial analysis report.
type FCSStatus string

const (
	FCSStatusProcessing FCSStatus = "processing"
	FCSStatusCompleted  FCSStatus = "completed"
	FCSStatusFailed     FCSStatus = "failed"
)

// FCSAnalysis is the one logical financial report per conversation. A new
// analysis overwrites the prior one; there is never more than one row per
// conversation.
type FCSAnalysis struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	BusinessName   string    `json:"business_name,omitempty"`
	StatementCount int       `json:"statement_count"`
	ReportText     string    `json:"report_text,omitempty"`
	Metrics        FCSMetrics `json:"metrics"`
	Status         FCSStatus `json:"status"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FCSMetrics are summary figures parsed out of the generated report text.
// Any metric whose extractor fails to match stays nil.
type FCSMetrics struct {
	AvgDeposits   *float64 `json:"avg_deposits,omitempty"`
	AvgRevenue    *float64 `json:"avg_revenue,omitempty"`
	NegativeDays  *int     `json:"negative_days,omitempty"`
	USState       string   `json:"us_state,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	PositionCount *int     `json:"position_count,omitempty"`
}
