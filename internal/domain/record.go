package domain

import "time"

// DownloadRecord status constants.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// DownloadRecord tracks the outcome of a single URL. The normalized URL is
// the identity key; one record exists per distinct URL and only the worker
// handling that URL mutates it.
type DownloadRecord struct {
	// Identity
	URL           string `json:"url"`
	SourcePageURL string `json:"source_page_url,omitempty"`

	// Outcome
	Status    string  `json:"status"`
	Attempts  int     `json:"attempts"`
	LocalPath *string `json:"local_path,omitempty"`
	SizeBytes *int64  `json:"size_bytes,omitempty"`
	LastError *string `json:"last_error,omitempty"`

	// Timestamps
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Succeeded reports whether the record completed successfully.
func (r *DownloadRecord) Succeeded() bool {
	return r.Status == StatusSucceeded
}
