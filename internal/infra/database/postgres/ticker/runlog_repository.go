package ticker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wonny/tickersync/internal/domain/ticker"
	"github.com/wonny/tickersync/internal/infra/database/postgres"
)

// SyncRunRepository PostgreSQL 실행 로그 저장소 (sync_runs)
type SyncRunRepository struct {
	pool *postgres.Pool
}

// NewSyncRunRepository 생성자
func NewSyncRunRepository(pool *postgres.Pool) *SyncRunRepository {
	return &SyncRunRepository{pool: pool}
}

const syncRunColumns = `
	id, state, dry_run, source_count, snapshot_count,
	adds, updates, deletes, unchanged, rejected, conflicts, invalid, warnings,
	abort_reason, error_message, started_at, finished_at, duration_ms
`

func syncRunArgs(run *ticker.SyncRun) []any {
	return []any{
		run.ID, string(run.State), run.DryRun, run.SourceCount, run.Snapshot,
		run.Adds, run.Updates, run.Deletes, run.Unchanged, run.Rejected, run.Conflicts, run.Invalid, run.Warnings,
		run.AbortReason, run.ErrorMessage, run.StartedAt, run.FinishedAt, run.DurationMs,
	}
}

func scanSyncRun(row pgx.Row) (*ticker.SyncRun, error) {
	var run ticker.SyncRun
	var state string
	err := row.Scan(
		&run.ID, &state, &run.DryRun, &run.SourceCount, &run.Snapshot,
		&run.Adds, &run.Updates, &run.Deletes, &run.Unchanged, &run.Rejected, &run.Conflicts, &run.Invalid, &run.Warnings,
		&run.AbortReason, &run.ErrorMessage, &run.StartedAt, &run.FinishedAt, &run.DurationMs,
	)
	if err != nil {
		return nil, err
	}
	run.State = ticker.RunState(state)
	return &run, nil
}

// Create 로그 생성 (실행 시작 시)
func (r *SyncRunRepository) Create(ctx context.Context, run *ticker.SyncRun) error {
	query := `INSERT INTO sync_runs (` + syncRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	if _, err := r.pool.Exec(ctx, query, syncRunArgs(run)...); err != nil {
		return fmt.Errorf("create sync run: %w", err)
	}
	return nil
}

// Update 로그 업데이트 (실행 완료/실패 시)
func (r *SyncRunRepository) Update(ctx context.Context, run *ticker.SyncRun) error {
	query := `
		UPDATE sync_runs
		SET state = $2, dry_run = $3, source_count = $4, snapshot_count = $5,
		    adds = $6, updates = $7, deletes = $8, unchanged = $9, rejected = $10,
		    conflicts = $11, invalid = $12, warnings = $13,
		    abort_reason = $14, error_message = $15, started_at = $16,
		    finished_at = $17, duration_ms = $18
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, syncRunArgs(run)...)
	if err != nil {
		return fmt.Errorf("update sync run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update sync run %s: %w", run.ID, ticker.ErrRunNotFound)
	}
	return nil
}

// GetByID ID로 로그 조회
func (r *SyncRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*ticker.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = $1`

	run, err := scanSyncRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticker.ErrRunNotFound
		}
		return nil, fmt.Errorf("get sync run: %w", err)
	}
	return run, nil
}

// GetRecent 최근 로그 조회
func (r *SyncRunRepository) GetRecent(ctx context.Context, limit int) ([]*ticker.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs ORDER BY started_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*ticker.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
