package model

import (
	"encoding/json"
	"time"
)

// Document is metadata for an uploaded file whose bytes live in object
// storage. Deleting the row does not guarantee the object is gone; object
// deletion is best-effort.
type Document struct {
	ID               string          `json:"id"`
	ConversationID   string          `json:"conversation_id"`
	StoredFilename   string          `json:"stored_filename"`
	OriginalFilename string          `json:"original_filename"`
	Size             int64           `json:"size"`
	MimeType         string          `json:"mime_type"`
	DocumentType     string          `json:"document_type,omitempty"`
	Bucket           string          `json:"bucket"`
	ObjectKey        string          `json:"object_key"`
	URL              string          `json:"url,omitempty"`
	AIAnalysis       json.RawMessage `json:"ai_analysis,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
