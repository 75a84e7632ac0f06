package ticker

import (
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of one reconciliation run
type RunState string

const (
	StateLoading    RunState = "loading"
	StateReconciled RunState = "reconciled"
	StateValidating RunState = "validating"
	StatePlanned    RunState = "planned"
	StateApplied    RunState = "applied"
	StateAborted    RunState = "aborted"
)

// IsTerminal reports whether no further transition is possible
func (s RunState) IsTerminal() bool {
	return s == StateApplied || s == StateAborted
}

// SyncRun is the run log row (sync_runs)
type SyncRun struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	State        RunState   `json:"state" db:"state"`
	DryRun       bool       `json:"dry_run" db:"dry_run"`
	SourceCount  int        `json:"source_count" db:"source_count"`
	Snapshot     int        `json:"snapshot_count" db:"snapshot_count"`
	Adds         int        `json:"adds" db:"adds"`
	Updates      int        `json:"updates" db:"updates"`
	Deletes      int        `json:"deletes" db:"deletes"`
	Unchanged    int        `json:"unchanged" db:"unchanged"`
	Rejected     int        `json:"rejected" db:"rejected"`
	Conflicts    int        `json:"conflicts" db:"conflicts"`
	Invalid      int        `json:"invalid" db:"invalid"`
	Warnings     int        `json:"warnings" db:"warnings"`
	AbortReason  *string    `json:"abort_reason,omitempty" db:"abort_reason"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	DurationMs   *int64     `json:"duration_ms,omitempty" db:"duration_ms"`
}
