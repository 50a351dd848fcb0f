package model

import "time"

// CSVImport records one bulk lead import. Per-row failures are counted, not
// individually reported.
type CSVImport struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	TotalRows    int       `json:"total_rows"`
	CreatedCount int       `json:"created_count"`
	FailedCount  int       `json:"failed_count"`
	SkippedCount int       `json:"skipped_count"`
	CreatedAt    time.Time `json:"created_at"`
}
