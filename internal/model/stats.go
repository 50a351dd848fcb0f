package model

// Stats is the pipeline snapshot served by /api/stats.
type Stats struct {
	ConversationsByState map[string]int64 `json:"conversations_by_state"`
	JobsByStatus         map[string]int64 `json:"jobs_by_status"`
	TotalConversations   int64            `json:"total_conversations"`
	TotalMessages        int64            `json:"total_messages"`
	TotalDocuments       int64            `json:"total_documents"`
}
