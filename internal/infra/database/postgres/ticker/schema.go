package ticker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wonny/tickersync/internal/infra/database/postgres"
)

// schemaStatements create the tables used by tickersync. Idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS stocks (
		symbol          VARCHAR(10) PRIMARY KEY,
		company         TEXT,
		exchange        VARCHAR(16) NOT NULL DEFAULT 'UNKNOWN',
		market_cap      NUMERIC(24, 2) CHECK (market_cap IS NULL OR market_cap >= 0),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stocks_exchange ON stocks (exchange)`,
	`CREATE TABLE IF NOT EXISTS sync_runs (
		id             UUID PRIMARY KEY,
		state          VARCHAR(16) NOT NULL,
		dry_run        BOOLEAN NOT NULL DEFAULT FALSE,
		source_count   INTEGER NOT NULL DEFAULT 0,
		snapshot_count INTEGER NOT NULL DEFAULT 0,
		adds           INTEGER NOT NULL DEFAULT 0,
		updates        INTEGER NOT NULL DEFAULT 0,
		deletes        INTEGER NOT NULL DEFAULT 0,
		unchanged      INTEGER NOT NULL DEFAULT 0,
		rejected       INTEGER NOT NULL DEFAULT 0,
		conflicts      INTEGER NOT NULL DEFAULT 0,
		invalid        INTEGER NOT NULL DEFAULT 0,
		warnings       INTEGER NOT NULL DEFAULT 0,
		abort_reason   VARCHAR(32),
		error_message  TEXT,
		started_at     TIMESTAMPTZ NOT NULL,
		finished_at    TIMESTAMPTZ,
		duration_ms    BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs (started_at DESC)`,
}

// EnsureSchema creates the stocks and sync_runs tables if absent
func EnsureSchema(ctx context.Context, pool *postgres.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	log.Info().Int("statements", len(schemaStatements)).Msg("Schema ready")
	return nil
}
