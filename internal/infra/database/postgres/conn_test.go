package postgres

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/tickersync/internal/pkg/config"
)

func TestNewPool(t *testing.T) {
	// Skip if no database available
	t.Skip("Integration test - requires PostgreSQL")

	ctx := context.Background()

	cfg, err := config.Load()
	require.NoError(t, err)

	pool, err := NewPool(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()

	assert.NoError(t, pool.Ping(ctx))
	assert.Equal(t, StatusHealthy, pool.Health(ctx).Status)
}

func TestPoolPressure(t *testing.T) {
	tests := []struct {
		acquired, max int32
		want          string
	}{
		{0, 10, StatusHealthy},
		{7, 10, StatusHealthy},
		{8, 10, StatusDegraded},
		{10, 10, StatusDegraded},
		{0, 0, StatusHealthy},
	}
	for _, tt := range tests {
		got, _ := poolPressure(tt.acquired, tt.max)
		assert.Equal(t, tt.want, got, "acquired=%d max=%d", tt.acquired, tt.max)
	}
}

func TestTraceLevel(t *testing.T) {
	assert.Equal(t, tracelog.LogLevelInfo, traceLevel("info"))
	assert.Equal(t, tracelog.LogLevelWarn, traceLevel("warn"))
	assert.Equal(t, tracelog.LogLevelDebug, traceLevel("debug"))
	assert.Equal(t, tracelog.LogLevelDebug, traceLevel(""))
}

func TestQueryLogger(t *testing.T) {
	var buf bytes.Buffer
	ql := NewQueryLogger(zerolog.New(&buf))

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = ql.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	ql.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
	assert.Contains(t, buf.String(), `"sql":"SELECT 1"`)
	assert.Contains(t, buf.String(), "Query executed")

	buf.Reset()
	slow := context.WithValue(context.Background(), queryStartKey, time.Now().Add(-time.Second))
	ql.TraceQueryEnd(slow, nil, pgx.TraceQueryEndData{})
	assert.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	ql.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{Err: errors.New("syntax error")})
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "syntax error")
}

func TestPgxZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewPgxZerologAdapter(zerolog.New(&buf))

	adapter.Log(context.Background(), tracelog.LogLevelWarn, "Query", map[string]any{"rows": 3})

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"rows":3`)
}
