package model

import "time"

// RunStatus represents the state of a hunt run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one hunt invocation for one source.
type Run struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Status      RunStatus  `json:"status"`
	Result      *RunResult `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RunResult holds the counters of a finished run.
type RunResult struct {
	Source           string `json:"source"`
	ArticlesFetched  int    `json:"articles_fetched"`
	SignalsCreated   int    `json:"signals_created"`
	SignalsProcessed int    `json:"signals_processed"`
	LeadsCreated     int    `json:"leads_created"`
	LeadsMerged      int    `json:"leads_merged"`
	Errors           int    `json:"errors"`
}

// RunFilter restricts run listings.
type RunFilter struct {
	Source string
	Status RunStatus
	Limit  int
}

// LeadFilter restricts lead listings.
type LeadFilter struct {
	Status   LeadStatus
	Strength Strength
	Limit    int
}
