package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/tickersync/internal/domain/ticker"
)

type countingProvider struct {
	mu     sync.Mutex
	calls  map[string]int
	quotes map[string]*ticker.Quote
	err    error
}

func (p *countingProvider) LookupQuote(_ context.Context, symbol string) (*ticker.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[symbol]++
	if p.err != nil {
		return nil, p.err
	}
	if q, ok := p.quotes[symbol]; ok {
		return q, nil
	}
	return nil, ticker.ErrQuoteNotFound
}

func (p *countingProvider) count(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

func setup(t *testing.T, p *countingProvider) (*QuoteCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQuoteCache(client, p, time.Hour), mr
}

func TestQuoteCache_HitAfterMiss(t *testing.T) {
	mc := decimal.NewFromInt(3_000_000_000_000)
	name := "Apple Inc."
	p := &countingProvider{quotes: map[string]*ticker.Quote{
		"AAPL": {Symbol: "AAPL", MarketCap: &mc, CompanyName: &name},
	}}
	cache, mr := setup(t, p)

	q, err := cache.LookupQuote(t.Context(), "AAPL")
	require.NoError(t, err)
	assert.True(t, q.MarketCap.Equal(mc))
	assert.True(t, mr.Exists(keyPrefix+"AAPL"))

	q, err = cache.LookupQuote(t.Context(), "AAPL")
	require.NoError(t, err)
	assert.True(t, q.MarketCap.Equal(mc))
	assert.Equal(t, "Apple Inc.", *q.CompanyName)
	assert.Equal(t, 1, p.count("AAPL"))
}

func TestQuoteCache_NotFoundIsCached(t *testing.T) {
	p := &countingProvider{}
	cache, _ := setup(t, p)

	_, err := cache.LookupQuote(t.Context(), "XYZQ")
	assert.True(t, ticker.IsNotFound(err))

	_, err = cache.LookupQuote(t.Context(), "XYZQ")
	assert.True(t, ticker.IsNotFound(err))
	assert.Equal(t, 1, p.count("XYZQ"))
}

func TestQuoteCache_TransientNotCached(t *testing.T) {
	p := &countingProvider{err: ticker.ErrProviderTransient}
	cache, mr := setup(t, p)

	_, err := cache.LookupQuote(t.Context(), "AAPL")
	assert.True(t, ticker.IsTransient(err))
	assert.False(t, mr.Exists(keyPrefix+"AAPL"))

	_, _ = cache.LookupQuote(t.Context(), "AAPL")
	assert.Equal(t, 2, p.count("AAPL"))
}

func TestQuoteCache_Expiry(t *testing.T) {
	mc := decimal.NewFromInt(10)
	p := &countingProvider{quotes: map[string]*ticker.Quote{"IBM": {Symbol: "IBM", MarketCap: &mc}}}
	cache, mr := setup(t, p)

	_, err := cache.LookupQuote(t.Context(), "IBM")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = cache.LookupQuote(t.Context(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, 2, p.count("IBM"))
}

func TestQuoteCache_RedisDownFallsThrough(t *testing.T) {
	mc := decimal.NewFromInt(10)
	p := &countingProvider{quotes: map[string]*ticker.Quote{"IBM": {Symbol: "IBM", MarketCap: &mc}}}
	cache, mr := setup(t, p)
	mr.Close()

	q, err := cache.LookupQuote(t.Context(), "IBM")
	require.NoError(t, err)
	assert.True(t, q.MarketCap.Equal(mc))
}

func TestQuoteCache_CorruptEntryIgnored(t *testing.T) {
	mc := decimal.NewFromInt(10)
	p := &countingProvider{quotes: map[string]*ticker.Quote{"IBM": {Symbol: "IBM", MarketCap: &mc}}}
	cache, mr := setup(t, p)
	require.NoError(t, mr.Set(keyPrefix+"IBM", "{not json"))

	_, err := cache.LookupQuote(t.Context(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, 1, p.count("IBM"))
}

func TestQuoteCache_Invalidate(t *testing.T) {
	mc := decimal.NewFromInt(10)
	p := &countingProvider{quotes: map[string]*ticker.Quote{"IBM": {Symbol: "IBM", MarketCap: &mc}}}
	cache, mr := setup(t, p)

	_, err := cache.LookupQuote(t.Context(), "IBM")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(t.Context(), "IBM"))
	assert.False(t, mr.Exists(keyPrefix+"IBM"))
	assert.NoError(t, cache.Invalidate(t.Context()))
}
