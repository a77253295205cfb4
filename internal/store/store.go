package store

import (
	"context"
	"time"

	"github.com/sells-group/hunter/internal/model"
)

// Store defines the persistence interface for the hunter pipeline.
// Lookups return (nil, nil) when no row matches. Writes that hit a unique
// constraint return an error satisfying db.IsUniqueViolation.
type Store interface {
	// Signals
	SignalExists(ctx context.Context, contentHash string) (bool, error)
	CreateSignal(ctx context.Context, sig *model.Signal) (bool, error)
	ListUnprocessedSignals(ctx context.Context, source string, limit int) ([]model.Signal, error)
	MarkSignalProcessed(ctx context.Context, id int64, at time.Time) error
	RecordSignalFailure(ctx context.Context, id int64, errMsg string) error

	// Leads
	GetLead(ctx context.Context, id int64) (*model.Lead, error)
	GetLeadByNormalizedName(ctx context.Context, normalizedName string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error)
	CreateLead(ctx context.Context, lead *model.Lead) error
	UpdateLead(ctx context.Context, id int64, patch model.LeadPatch) (*model.Lead, error)

	// Lead signals
	CreateLeadSignal(ctx context.Context, ls *model.LeadSignal) error
	ListLeadSignals(ctx context.Context, leadID int64) ([]model.LeadSignal, error)

	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, errMsg string, result *model.RunResult) error
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
