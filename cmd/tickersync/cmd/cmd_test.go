package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tickersync/internal/domain/ticker"
	rediscache "github.com/wonny/tickersync/internal/infra/cache/redis"
	"github.com/wonny/tickersync/internal/pkg/config"
	"github.com/wonny/tickersync/internal/service/tickersync"
)

func testConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{
			BatchSize:        25,
			Workers:          3,
			CallDelay:        time.Second,
			RetryAttempts:    5,
			RetryBaseDelay:   time.Second,
			RetryMaxDelay:    10 * time.Second,
			RetryJitter:      0.2,
			RunTimeout:       time.Minute,
			ConflictPolicy:   "exchange-priority",
			ExchangePriority: "NASDAQ,NYSE",
			RequireCompany:   true,
			DryRun:           true,
		},
	}
}

func TestServiceConfig(t *testing.T) {
	c := testConfig()

	sc, err := serviceConfig(c)
	require.NoError(t, err)
	assert.Equal(t, tickersync.ConflictExchangePriority, sc.ConflictPolicy.Mode)
	assert.Equal(t, []ticker.Exchange{ticker.ExchangeNASDAQ, ticker.ExchangeNYSE}, sc.ConflictPolicy.Priority)
	assert.Equal(t, time.Minute, sc.RunTimeout)
	assert.True(t, sc.DryRun)

	c.Sync.ConflictPolicy = "random"
	_, err = serviceConfig(c)
	assert.Error(t, err)
}

func TestValidatorConfig(t *testing.T) {
	vc := validatorConfig(testConfig())

	assert.Equal(t, 25, vc.BatchSize)
	assert.Equal(t, 3, vc.Workers)
	assert.Equal(t, 5, vc.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, vc.Retry.MaxDelay)
	assert.InDelta(t, 0.2, vc.Retry.Jitter, 1e-9)
	assert.True(t, vc.RequireCompany)
}

func TestQuoteProvider(t *testing.T) {
	c := testConfig()

	provider, cache := (&app{}).quoteProvider(c)
	assert.NotNil(t, provider)
	assert.Nil(t, cache)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	provider, cache = (&app{redis: client}).quoteProvider(c)
	require.NotNil(t, cache)
	assert.IsType(t, &rediscache.QuoteCache{}, provider)
}

func TestCollectInputs(t *testing.T) {
	cfg = testConfig()
	dir := t.TempDir()
	nyse := filepath.Join(dir, "nyse.txt")
	require.NoError(t, os.WriteFile(nyse, []byte("IBM\n"), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["AAPL","MSFT"]`))
	}))
	defer srv.Close()

	inputs, err := collectInputs(t.Context(), []string{nyse}, srv.URL+"/nasdaq.json")
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, ticker.ExchangeNYSE, inputs[0].Exchange)
	assert.Equal(t, ticker.ExchangeNASDAQ, inputs[1].Exchange)
	assert.Len(t, inputs[1].Entries, 2)

	// configured defaults
	cfg.Sync.ListingFiles = []string{nyse}
	inputs, err = collectInputs(t.Context(), nil, "")
	require.NoError(t, err)
	assert.Len(t, inputs, 1)

	cfg.Sync.ListingFiles = nil
	_, err = collectInputs(t.Context(), nil, "")
	assert.Error(t, err)

	// unreadable sources stay in the list, marked failed
	inputs, err = collectInputs(t.Context(), []string{filepath.Join(dir, "nasdaq.txt")}, srv.URL+"\x00")
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Error(t, inputs[0].Err)
	assert.Error(t, inputs[1].Err)
}

func TestPrintSummaryAndPlan(t *testing.T) {
	mc := decimal.NewFromInt(100)
	plan := &ticker.PersistencePlan{
		RunTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Actions: []ticker.Action{
			{Kind: ticker.ActionDelete, Symbol: "OLD"},
			{Kind: ticker.ActionUpsert, Symbol: "AAPL", Record: &ticker.TickerRecord{Symbol: "AAPL", MarketCap: &mc}},
		},
		Rejections: []ticker.Rejection{{Symbol: "XYZQ", Kind: "add", Reason: ticker.ReasonNoMarketCapData}},
	}
	count := 10
	result := &tickersync.RunResult{
		RunID:      uuid.New(),
		State:      ticker.StateApplied,
		Plan:       plan,
		Applied:    &ticker.ApplyResult{Deleted: 1, Upserted: 1},
		FinalCount: &count,
	}

	var out bytes.Buffer
	printSummary(&out, result)
	assert.Contains(t, out.String(), "applied")
	assert.Contains(t, out.String(), "1 upserts, 1 deletes, 1 rejected")
	assert.Contains(t, out.String(), "XYZQ")
	assert.Contains(t, out.String(), "10 rows")

	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, writePlan(&out, path, plan))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := plan.Encode()
	require.NoError(t, err)
	assert.Equal(t, want, data)

	out.Reset()
	require.NoError(t, writePlan(&out, "-", plan))
	assert.Contains(t, out.String(), `"OLD"`)

	assert.NoError(t, writePlan(&out, path, nil))
}

func TestPrintRuns(t *testing.T) {
	var out bytes.Buffer
	printRuns(&out, nil)
	assert.Contains(t, out.String(), "no runs")

	reason := string(ticker.AbortEmptySourceSet)
	ms := int64(1200)
	out.Reset()
	printRuns(&out, []*ticker.SyncRun{
		{ID: uuid.New(), State: ticker.StateAborted, AbortReason: &reason, StartedAt: time.Now()},
		{ID: uuid.New(), State: ticker.StatePlanned, DryRun: true, Adds: 4, DurationMs: &ms, StartedAt: time.Now()},
	})
	assert.Contains(t, out.String(), "aborted: EmptySourceSet")
	assert.Contains(t, out.String(), "planned*")
	assert.Contains(t, out.String(), "1200")
}
