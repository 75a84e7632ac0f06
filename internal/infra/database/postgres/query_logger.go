package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type ctxKey int

const (
	queryStartKey ctxKey = iota
	querySQLKey
	requestIDKey
)

// SlowQueryThreshold is the duration above which queries log at Warn
const SlowQueryThreshold = 100 * time.Millisecond

// WithRequestID tags ctx so traced queries carry the HTTP request id
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// QueryLogger implements pgx.QueryTracer for logging database queries
type QueryLogger struct {
	logger zerolog.Logger
}

// NewQueryLogger creates a new query logger
func NewQueryLogger(logger zerolog.Logger) *QueryLogger {
	return &QueryLogger{logger: logger}
}

// TraceQueryStart is called at the beginning of Query, QueryRow, and Exec calls
func (ql *QueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx = context.WithValue(ctx, querySQLKey, data.SQL)
	return context.WithValue(ctx, queryStartKey, time.Now())
}

// TraceQueryEnd is called at the end of Query, QueryRow, and Exec calls
func (ql *QueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey).(time.Time)
	if !ok {
		start = time.Now()
	}
	duration := time.Since(start)

	var event *zerolog.Event
	switch {
	case data.Err != nil:
		event = ql.logger.Error().Err(data.Err)
	case duration > SlowQueryThreshold:
		event = ql.logger.Warn()
	default:
		event = ql.logger.Debug()
	}

	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		event = event.Str("request_id", id)
	}

	// TraceQueryEndData carries no SQL; it was stashed at start
	sql, _ := ctx.Value(querySQLKey).(string)

	event = event.
		Str("sql", sql).
		Int64("duration_ms", duration.Milliseconds()).
		Str("command_tag", data.CommandTag.String())

	switch {
	case data.Err != nil:
		event.Msg("Query failed")
	case duration > SlowQueryThreshold:
		event.Msg("⚠️  Slow query detected")
	default:
		event.Msg("Query executed")
	}
}

// PgxZerologAdapter adapts zerolog.Logger to pgx's tracelog.Logger interface
type PgxZerologAdapter struct {
	logger zerolog.Logger
}

// NewPgxZerologAdapter creates a new adapter
func NewPgxZerologAdapter(logger zerolog.Logger) *PgxZerologAdapter {
	return &PgxZerologAdapter{logger: logger}
}

// Log implements tracelog.Logger
func (l *PgxZerologAdapter) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	var event *zerolog.Event

	switch level {
	case tracelog.LogLevelTrace:
		event = l.logger.Trace()
	case tracelog.LogLevelDebug:
		event = l.logger.Debug()
	case tracelog.LogLevelInfo:
		event = l.logger.Info()
	case tracelog.LogLevelWarn:
		event = l.logger.Warn()
	case tracelog.LogLevelError:
		event = l.logger.Error()
	default:
		event = l.logger.Info()
	}

	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		event = event.Str("request_id", id)
	}
	event.Fields(data).Msg(msg)
}
