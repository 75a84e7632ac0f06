package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/multitracer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog/log"
	"github.com/wonny/tickersync/internal/pkg/config"
	applogger "github.com/wonny/tickersync/internal/pkg/logger"
)

// Pool wraps pgxpool.Pool
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new PostgreSQL connection pool
// SSOT: config.Database.URL에서만 연결 정보를 가져옴
func NewPool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	log.Info().
		Str("host", cfg.Database.Host).
		Str("port", cfg.Database.Port).
		Str("database", cfg.Database.Name).
		Str("user", cfg.Database.User).
		Msg("Connecting to PostgreSQL...")

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	// Query tracing goes to query.log (file logging only)
	if cfg.Logging.FileEnabled {
		queryLogger := applogger.NewQueryLogger(
			cfg.Logging.FilePath,
			cfg.Logging.RotationSize,
			cfg.Logging.RetentionDays,
		)
		poolConfig.ConnConfig.Tracer = multitracer.New(
			NewQueryLogger(queryLogger),
			&tracelog.TraceLog{
				Logger:   NewPgxZerologAdapter(queryLogger),
				LogLevel: traceLevel(cfg.Logging.Level),
			},
		)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("✅ PostgreSQL connected successfully")

	if err := checkTables(ctx, pool); err != nil {
		log.Warn().Err(err).Msg("Table check failed, but continuing...")
	}

	return &Pool{Pool: pool}, nil
}

// traceLevel maps the application log level to the pgx trace level
func traceLevel(level string) tracelog.LogLevel {
	switch level {
	case "trace":
		return tracelog.LogLevelTrace
	case "info":
		return tracelog.LogLevelInfo
	case "warn":
		return tracelog.LogLevelWarn
	case "error":
		return tracelog.LogLevelError
	default:
		return tracelog.LogLevelDebug
	}
}

// checkTables warns when the tables have not been created yet
func checkTables(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range []string{"stocks", "sync_runs"} {
		var exists bool
		query := `SELECT to_regclass($1) IS NOT NULL`
		if err := pool.QueryRow(ctx, query, table).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			log.Warn().
				Str("table", table).
				Msg("⚠️  Table does not exist (run `tickersync schema init`)")
		}
	}
	return nil
}

// Close closes the connection pool
func (p *Pool) Close() {
	log.Info().Msg("Closing PostgreSQL connection pool...")
	p.Pool.Close()
}
