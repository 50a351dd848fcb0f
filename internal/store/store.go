package store

import (
	"context"

	"github.com/crestfund/lead-crm/internal/model"
)

// ConversationFilter specifies criteria for listing conversations.
type ConversationFilter struct {
	State    model.State `json:"state,omitempty"`
	Priority *int        `json:"priority,omitempty"`
	Limit    int         `json:"limit,omitempty"`
	Offset   int         `json:"offset,omitempty"`
}

// JobFilter specifies criteria for listing job queue entries.
type JobFilter struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Type           model.JobType   `json:"type,omitempty"`
	Status         model.JobStatus `json:"status,omitempty"`
	Limit          int             `json:"limit,omitempty"`
}

// DeleteCounts reports per-table row counts removed by a bulk delete. Tables
// whose delete failed are absent; failures are logged, not fatal.
type DeleteCounts map[string]int64

// Store defines the persistence interface for the CRM.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, c model.Conversation) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetConversationBySeq(ctx context.Context, seq int64) (*model.Conversation, error)
	ListConversations(ctx context.Context, filter ConversationFilter) ([]model.Conversation, error)
	UpdateConversationFields(ctx context.Context, id string, fields map[string]any) error
	TouchConversation(ctx context.Context, id string) error
	FindConversationByPhoneSuffix(ctx context.Context, digits string) (*model.Conversation, error)
	BulkDeleteConversations(ctx context.Context, ids []string) (DeleteCounts, error)

	// Lead details
	UpsertLeadDetails(ctx context.Context, conversationID string, fields map[string]any) error
	GetLeadDetails(ctx context.Context, conversationID string) (*model.LeadDetails, error)

	// Messages
	InsertMessage(ctx context.Context, m model.Message) (*model.Message, error)
	UpdateMessageStatus(ctx context.Context, id string, status model.MessageStatus, carrierID string) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)

	// Documents
	InsertDocument(ctx context.Context, d model.Document) (*model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, conversationID string) ([]model.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// FCS analyses (one current row per conversation) and append-only history
	UpsertFCSProcessing(ctx context.Context, conversationID, businessName string) (*model.FCSAnalysis, error)
	CompleteFCS(ctx context.Context, conversationID, reportText string, statementCount int, metrics model.FCSMetrics) error
	FailFCS(ctx context.Context, conversationID, errorMessage string) error
	GetFCS(ctx context.Context, conversationID string) (*model.FCSAnalysis, error)
	InsertFCSResult(ctx context.Context, a model.FCSAnalysis) (string, error)
	ListFCSResults(ctx context.Context, conversationID string) ([]model.FCSAnalysis, error)
	DeleteFCSResult(ctx context.Context, id string) error

	// Lender roster
	CreateLender(ctx context.Context, l model.Lender) (*model.Lender, error)
	UpdateLender(ctx context.Context, l model.Lender) error
	DeleteLender(ctx context.Context, id string) error
	GetLender(ctx context.Context, id string) (*model.Lender, error)
	ListLenders(ctx context.Context) ([]model.Lender, error)

	// Lender matches
	ReplaceLenderMatches(ctx context.Context, conversationID string, matches []model.LenderMatch) error
	ListLenderMatches(ctx context.Context, conversationID string, qualifiedOnly bool) ([]model.LenderMatch, error)
	TopLenderMatch(ctx context.Context, conversationID string) (*model.LenderMatch, error)

	// Job queue
	EnqueueJob(ctx context.Context, jobType model.JobType, conversationID string, input []byte) (*model.Job, error)
	CompleteJob(ctx context.Context, conversationID string, jobType model.JobType, result []byte) (bool, error)
	FailJob(ctx context.Context, conversationID string, jobType model.JobType, errMsg string) (bool, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	// CSV imports
	InsertCSVImport(ctx context.Context, imp model.CSVImport) (*model.CSVImport, error)
	ListCSVImports(ctx context.Context, limit int) ([]model.CSVImport, error)
	GetCSVImport(ctx context.Context, id string) (*model.CSVImport, error)
	ListImportConversations(ctx context.Context, importID string) ([]model.Conversation, error)

	// AI chat
	InsertChatMessage(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error)
	ListChatMessages(ctx context.Context, conversationID string, limit int) ([]model.ChatMessage, error)

	// Stats
	Stats(ctx context.Context) (*model.Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
