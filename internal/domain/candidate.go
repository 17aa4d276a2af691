// Package domain defines the core types shared across the download engine.
package domain

// Candidate is a file URL discovered by the page agent but not yet known
// to be downloaded.
type Candidate struct {
	URL           string `json:"url"`
	SourcePageURL string `json:"source_page_url,omitempty"`
	LinkText      string `json:"link_text,omitempty"`
}
