package ticker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSnapshot_ReadOnly(t *testing.T) {
	mc := decimal.NewFromInt(100)
	snap := NewSnapshot([]TickerRecord{
		{Symbol: "MSFT", Exchange: ExchangeNASDAQ, Company: strPtr("Microsoft"), MarketCap: &mc},
		{Symbol: "IBM", Exchange: ExchangeNYSE},
	})

	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, []string{"IBM", "MSFT"}, snap.Symbols())

	rec, ok := snap.Get("MSFT")
	require.True(t, ok)
	*rec.Company = "changed"
	*rec.MarketCap = decimal.Zero

	again, _ := snap.Get("MSFT")
	assert.Equal(t, "Microsoft", again.CompanyName())
	assert.True(t, again.MarketCap.Equal(decimal.NewFromInt(100)))
}

func TestSnapshot_Apply(t *testing.T) {
	snap := NewSnapshot([]TickerRecord{
		{Symbol: "OLD", Exchange: ExchangeNYSE},
		{Symbol: "KEEP", Exchange: ExchangeNYSE},
	})
	runTime := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	plan := &PersistencePlan{
		RunTime: runTime,
		Actions: []Action{
			{Kind: ActionDelete, Symbol: "OLD"},
			{Kind: ActionUpsert, Symbol: "NEW", Record: &TickerRecord{Symbol: "NEW", Exchange: ExchangeNASDAQ, LastUpdated: runTime}},
		},
	}

	next := snap.Apply(plan)

	assert.Equal(t, []string{"KEEP", "NEW"}, next.Symbols())
	assert.Equal(t, []string{"KEEP", "OLD"}, snap.Symbols(), "receiver must not change")
	assert.Equal(t, []string{"OLD"}, plan.Deletes())
	assert.Len(t, plan.Upserts(), 1)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]DiffEntry{
		{Kind: DiffAdd}, {Kind: DiffAdd}, {Kind: DiffUpdate}, {Kind: DiffDelete}, {Kind: DiffUnchanged},
	})
	assert.Equal(t, DiffSummary{Adds: 2, Updates: 1, Deletes: 1, Unchanged: 1}, s)
}

func TestPersistencePlan_Encode(t *testing.T) {
	mc := decimal.RequireFromString("3000000000000")
	runTime := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	build := func() *PersistencePlan {
		return &PersistencePlan{
			RunTime: runTime,
			Actions: []Action{
				{Kind: ActionUpsert, Symbol: "AAPL", Record: &TickerRecord{
					Symbol: "AAPL", Exchange: ExchangeNASDAQ, Company: strPtr("Apple Inc."), MarketCap: &mc, LastUpdated: runTime,
				}},
			},
		}
	}

	a, err := build().Encode()
	require.NoError(t, err)
	b, err := build().Encode()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Contains(t, string(a), `"market_cap":"3000000000000"`)
}
