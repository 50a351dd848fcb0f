package model

import (
	"encoding/json"
	"time"
)

// JobType identifies the async pipeline a queue entry belongs to.
type JobType string

const (
	JobTypeFCSAnalysis          JobType = "fcs_analysis"
	JobTypeLenderQualification  JobType = "lender_qualification"
)

// JobStatus is the queue entry lifecycle. The external worker owns the
// queued→processing transition; this service only writes queued rows and
// completes them from callbacks.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is a durable async work item handed to the external workflow
// processor. It is the audit trail and idempotency boundary for async work.
type Job struct {
	ID             string          `json:"id"`
	Type           JobType         `json:"type"`
	ConversationID string          `json:"conversation_id"`
	InputData      json.RawMessage `json:"input_data,omitempty"`
	Status         JobStatus       `json:"status"`
	ResultData     json.RawMessage `json:"result_data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
