package tickersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wonny/tickersync/internal/domain/ticker"
)

// Config 서비스 설정
type Config struct {
	ConflictPolicy ConflictPolicy
	RunTimeout     time.Duration // bounds the validation phase; 0 = no limit
	DryRun         bool          // stop at Planned, never call the Persister
}

// DefaultConfig 기본 설정
func DefaultConfig() *Config {
	return &Config{
		ConflictPolicy: DefaultConflictPolicy(),
		RunTimeout:     30 * time.Minute,
	}
}

// Option configures optional collaborators of the Service
type Option func(*Service)

// WithRunLog records every run in the run log
func WithRunLog(repo ticker.RunLogRepository) Option {
	return func(s *Service) { s.runLog = repo }
}

// WithPublisher announces applied plans
func WithPublisher(p ticker.PlanPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithQuoteInvalidator drops cached quotes of deleted symbols after apply
func WithQuoteInvalidator(inv ticker.QuoteInvalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

// WithCounter reports the final row count after apply
func WithCounter(c ticker.TickerCounter) Option {
	return func(s *Service) { s.counter = c }
}

// WithClock replaces time.Now (tests)
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs one reconciliation at a time: Loading → Reconciled → Validating → Planned → Applied | Aborted
type Service struct {
	config *Config

	snapshots ticker.SnapshotReader
	validator *Validator
	persister ticker.Persister

	// optional
	runLog      ticker.RunLogRepository
	publisher   ticker.PlanPublisher
	invalidator ticker.QuoteInvalidator
	counter     ticker.TickerCounter

	now func() time.Time
}

// NewService 서비스 생성
func NewService(
	config *Config,
	snapshots ticker.SnapshotReader,
	validator *Validator,
	persister ticker.Persister,
	opts ...Option,
) *Service {
	if config == nil {
		config = DefaultConfig()
	}

	s := &Service{
		config:    config,
		snapshots: snapshots,
		validator: validator,
		persister: persister,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunResult is everything a finished (or aborted) run produced
type RunResult struct {
	RunID         uuid.UUID
	State         ticker.RunState
	AbortReason   ticker.AbortReason
	SourceCount   int
	SnapshotCount int
	Conflicts     []ticker.ConflictingSourceError
	Invalid       []ticker.InvalidSymbolError
	Diff          []ticker.DiffEntry
	Summary       ticker.DiffSummary
	Validation    *ValidationResult
	Plan          *ticker.PersistencePlan
	Applied       *ticker.ApplyResult
	FinalCount    *int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Run executes one reconciliation run over the given listing inputs.
//
// Aborts (unreadable source, empty source set, snapshot unavailable) return
// *ticker.AbortError and no plan.
// A Persister failure returns an error wrapping ticker.ErrPlanApplyFailed and leaves
// the run Planned with the plan attached.
func (s *Service) Run(ctx context.Context, inputs []ticker.ListingInput) (*RunResult, error) {
	machine := newRunMachine()
	result := &RunResult{
		RunID:     uuid.New(),
		State:     machine.State(),
		StartedAt: s.now(),
	}
	logger := log.With().Str("run_id", result.RunID.String()).Logger()

	logger.Info().
		Int("inputs", len(inputs)).
		Bool("dry_run", s.config.DryRun).
		Str("conflict_policy", string(s.config.ConflictPolicy.Mode)).
		Msg("Sync run started")

	s.recordStart(ctx, result)

	// Loading
	// a partial source set would turn every symbol of the missing listing into a delete
	for _, in := range inputs {
		if in.Err != nil {
			return s.abort(ctx, logger, machine, result, ticker.AbortSourceUnreadable,
				fmt.Errorf("%w: %s: %w", ticker.ErrSourceUnreadable, in.Origin, in.Err))
		}
	}

	built := BuildSourceSet(inputs, s.config.ConflictPolicy)
	result.SourceCount = built.Set.Len()
	result.Conflicts = built.Conflicts
	result.Invalid = built.Invalid

	if built.Set.Len() == 0 {
		return s.abort(ctx, logger, machine, result, ticker.AbortEmptySourceSet, ticker.ErrEmptySourceSet)
	}

	snapshot, err := s.snapshots.LoadSnapshot(ctx)
	if err != nil {
		return s.abort(ctx, logger, machine, result, ticker.AbortSnapshotUnavailable,
			fmt.Errorf("%w: %w", ticker.ErrSnapshotUnavailable, err))
	}
	result.SnapshotCount = snapshot.Len()

	// Reconciled
	result.Diff = Reconcile(built.Set, snapshot)
	result.Summary = ticker.Summarize(result.Diff)
	s.transition(logger, machine, result, ticker.StateReconciled)

	logger.Info().
		Int("source", result.SourceCount).
		Int("snapshot", result.SnapshotCount).
		Int("adds", result.Summary.Adds).
		Int("updates", result.Summary.Updates).
		Int("deletes", result.Summary.Deletes).
		Int("unchanged", result.Summary.Unchanged).
		Int("conflicts", len(result.Conflicts)).
		Int("invalid", len(result.Invalid)).
		Msg("Reconciled")

	// Validating
	s.transition(logger, machine, result, ticker.StateValidating)
	vctx := ctx
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}
	result.Validation = s.validator.Validate(vctx, result.Diff)

	// Planned
	result.Plan = AssemblePlan(result.Diff, result.Validation.Outcomes, s.now())
	s.transition(logger, machine, result, ticker.StatePlanned)

	logger.Info().
		Int("actions", len(result.Plan.Actions)).
		Int("deletes", len(result.Plan.Deletes())).
		Int("upserts", len(result.Plan.Upserts())).
		Int("rejected", len(result.Plan.Rejections)).
		Int("warnings", result.Plan.Warnings).
		Msg("Plan assembled")

	if s.config.DryRun {
		logger.Info().Msg("Dry run: plan not applied")
		s.finish(ctx, logger, result, nil)
		return result, nil
	}

	// Applied
	if result.Plan.IsEmpty() {
		result.Applied = &ticker.ApplyResult{}
	} else {
		applied, err := s.persister.ApplyPlan(ctx, result.Plan)
		if err != nil {
			applyErr := fmt.Errorf("%w: %w", ticker.ErrPlanApplyFailed, err)
			logger.Error().Err(err).Msg("Plan apply failed, snapshot left unchanged")
			s.finish(ctx, logger, result, applyErr)
			return result, applyErr
		}
		result.Applied = applied
	}
	s.transition(logger, machine, result, ticker.StateApplied)

	if s.publisher != nil && !result.Plan.IsEmpty() {
		if err := s.publisher.Publish(ctx, result.RunID, result.Plan); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish plan events")
		}
	}

	// a relisted symbol must be validated against a fresh quote
	if s.invalidator != nil {
		if deleted := result.Plan.Deletes(); len(deleted) > 0 {
			if err := s.invalidator.Invalidate(ctx, deleted...); err != nil {
				logger.Warn().Err(err).Int("symbols", len(deleted)).Msg("Failed to invalidate cached quotes")
			}
		}
	}

	if s.counter != nil {
		if n, err := s.counter.CountTickers(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to count tickers")
		} else {
			result.FinalCount = &n
		}
	}

	s.finish(ctx, logger, result, nil)
	return result, nil
}

// transition moves the machine; the service only requests allowed transitions
func (s *Service) transition(logger zerolog.Logger, m *runMachine, result *RunResult, next ticker.RunState) {
	if err := m.To(next); err != nil {
		logger.Error().Err(err).Msg("Run state machine violated")
		return
	}
	result.State = m.State()
	logger.Debug().Str("state", string(result.State)).Msg("Run state changed")
}

func (s *Service) abort(
	ctx context.Context,
	logger zerolog.Logger,
	m *runMachine,
	result *RunResult,
	reason ticker.AbortReason,
	cause error,
) (*RunResult, error) {
	if err := m.Abort(reason); err != nil {
		logger.Error().Err(err).Msg("Run state machine violated")
	}
	result.State = m.State()
	result.AbortReason = reason

	abortErr := &ticker.AbortError{Reason: reason, Err: cause}
	logger.Error().Err(cause).Str("reason", string(reason)).Msg("Sync run aborted")

	s.finish(ctx, logger, result, abortErr)
	return result, abortErr
}

// =============================================================================
// Run log (best-effort)
// =============================================================================

func (s *Service) recordStart(ctx context.Context, result *RunResult) {
	if s.runLog == nil {
		return
	}
	run := &ticker.SyncRun{
		ID:        result.RunID,
		State:     result.State,
		DryRun:    s.config.DryRun,
		StartedAt: result.StartedAt,
	}
	if err := s.runLog.Create(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", result.RunID.String()).Msg("Failed to create run log")
	}
}

func (s *Service) finish(ctx context.Context, logger zerolog.Logger, result *RunResult, runErr error) {
	result.FinishedAt = s.now()
	duration := result.FinishedAt.Sub(result.StartedAt)

	event := logger.Info()
	if runErr != nil {
		event = logger.Warn().Err(runErr)
	}
	event = event.
		Str("state", string(result.State)).
		Int("adds", result.Summary.Adds).
		Int("updates", result.Summary.Updates).
		Int("deletes", result.Summary.Deletes).
		Int("unchanged", result.Summary.Unchanged).
		Dur("duration", duration)
	if result.Applied != nil {
		event = event.Int("deleted", result.Applied.Deleted).Int("upserted", result.Applied.Upserted)
	}
	if result.FinalCount != nil {
		event = event.Int("final_count", *result.FinalCount)
	}
	event.Msg("Sync run finished")

	if s.runLog == nil {
		return
	}

	run := result.SyncRun(s.config.DryRun)
	if runErr != nil {
		msg := runErr.Error()
		run.ErrorMessage = &msg
	}

	// the run context may already be cancelled; the log row should still be written
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runLog.Update(logCtx, run); err != nil {
		if errors.Is(err, ticker.ErrRunNotFound) {
			err = s.runLog.Create(logCtx, run)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to update run log")
		}
	}
}

// SyncRun converts the result to its run log row
func (r *RunResult) SyncRun(dryRun bool) *ticker.SyncRun {
	run := &ticker.SyncRun{
		ID:          r.RunID,
		State:       r.State,
		DryRun:      dryRun,
		SourceCount: r.SourceCount,
		Snapshot:    r.SnapshotCount,
		Adds:        r.Summary.Adds,
		Updates:     r.Summary.Updates,
		Deletes:     r.Summary.Deletes,
		Unchanged:   r.Summary.Unchanged,
		Conflicts:   len(r.Conflicts),
		Invalid:     len(r.Invalid),
		StartedAt:   r.StartedAt,
	}
	if r.Plan != nil {
		run.Rejected = len(r.Plan.Rejections)
		run.Warnings = r.Plan.Warnings
	}
	if r.AbortReason != "" {
		reason := string(r.AbortReason)
		run.AbortReason = &reason
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		ms := r.FinishedAt.Sub(r.StartedAt).Milliseconds()
		run.FinishedAt = &finished
		run.DurationMs = &ms
	}
	return run
}
