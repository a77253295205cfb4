package model

import "time"

// Content types recorded on a Signal.
const (
	ContentTypeArticle = "article"
	ContentTypeFeed    = "feed_item"
)

// FetchedArticle is one item produced by a source adapter.
type FetchedArticle struct {
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// MaxSignalAttempts caps how often a signal is retried after a failed
// extraction or upsert. Signals at the cap stay unprocessed but are no
// longer listed for processing.
const MaxSignalAttempts = 3

// Signal is one persisted piece of raw content. Signals are append-only:
// the only mutations are flipping IsProcessed and recording failed attempts.
type Signal struct {
	ID          int64      `json:"id"`
	Source      string     `json:"source"`
	SourceURL   string     `json:"source_url"`
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ContentType string     `json:"content_type"`
	RawContent  string     `json:"raw_content"`
	ContentHash string     `json:"content_hash"`
	IsProcessed bool       `json:"is_processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Attempts    int        `json:"attempts"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
