package ticker

import (
	"context"

	"github.com/google/uuid"
)

// =============================================================================
// Storage
// =============================================================================

// SnapshotReader supplies the full ticker table
type SnapshotReader interface {
	LoadSnapshot(ctx context.Context) (Snapshot, error)
}

// Persister applies a plan atomically or reports failure
type Persister interface {
	ApplyPlan(ctx context.Context, plan *PersistencePlan) (*ApplyResult, error)
}

// RunLogRepository stores the run log (sync_runs)
type RunLogRepository interface {
	Create(ctx context.Context, run *SyncRun) error
	Update(ctx context.Context, run *SyncRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	GetRecent(ctx context.Context, limit int) ([]*SyncRun, error)
}

// TickerCounter reports the stored row count (final run statistics)
type TickerCounter interface {
	CountTickers(ctx context.Context) (int, error)
}

// =============================================================================
// External
// =============================================================================

// QuoteProvider is the market-data provider's quote lookup.
// Errors: ErrQuoteNotFound, ErrProviderTransient (retryable), anything else is final.
type QuoteProvider interface {
	LookupQuote(ctx context.Context, symbol string) (*Quote, error)
}

// QuoteInvalidator drops cached quotes for symbols
type QuoteInvalidator interface {
	Invalidate(ctx context.Context, symbols ...string) error
}

// PlanPublisher announces applied plan actions to downstream consumers
type PlanPublisher interface {
	Publish(ctx context.Context, runID uuid.UUID, plan *PersistencePlan) error
}
