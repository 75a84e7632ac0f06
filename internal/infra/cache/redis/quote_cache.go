// Package redis caches provider quotes in Redis in front of a ticker.QuoteProvider.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/wonny/tickersync/internal/domain/ticker"
)

const (
	keyPrefix  = "tickersync:quote:"
	defaultTTL = 6 * time.Hour
)

// Compile-time checks
var (
	_ ticker.QuoteProvider    = (*QuoteCache)(nil)
	_ ticker.QuoteInvalidator = (*QuoteCache)(nil)
)

// cachedQuote is the stored value; Found=false remembers a NotFound answer
type cachedQuote struct {
	Found bool          `json:"found"`
	Quote *ticker.Quote `json:"quote,omitempty"`
}

// QuoteCache wraps a QuoteProvider. Successful quotes and NotFound answers
// are cached; transient and final errors are not.
type QuoteCache struct {
	client *goredis.Client
	next   ticker.QuoteProvider
	ttl    time.Duration
	group  singleflight.Group
}

// NewQuoteCache 캐시 생성 (ttl <= 0 uses the default)
func NewQuoteCache(client *goredis.Client, next ticker.QuoteProvider, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &QuoteCache{client: client, next: next, ttl: ttl}
}

// NewClient opens a Redis client and checks connectivity
func NewClient(ctx context.Context, addr, password string, db, poolSize int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().Str("addr", addr).Int("db", db).Msg("Redis connected")
	return client, nil
}

// LookupQuote serves from Redis when possible. A Redis failure degrades to the wrapped provider.
func (c *QuoteCache) LookupQuote(ctx context.Context, symbol string) (*ticker.Quote, error) {
	if q, hit, err := c.get(ctx, symbol); hit {
		return q, err
	}

	v, err, shared := c.group.Do(symbol, func() (any, error) {
		q, err := c.next.LookupQuote(ctx, symbol)
		switch {
		case err == nil:
			c.set(ctx, symbol, cachedQuote{Found: true, Quote: q})
		case ticker.IsNotFound(err):
			c.set(ctx, symbol, cachedQuote{Found: false})
		}
		return q, err
	})
	if shared {
		log.Debug().Str("symbol", symbol).Msg("Quote lookup shared")
	}
	if err != nil {
		return nil, err
	}
	return v.(*ticker.Quote), nil
}

// Invalidate drops cached entries for the given symbols
func (c *QuoteCache) Invalidate(ctx context.Context, symbols ...string) error {
	if len(symbols) == 0 {
		return nil
	}
	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = keyPrefix + s
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate quotes: %w", err)
	}
	return nil
}

func (c *QuoteCache) get(ctx context.Context, symbol string) (*ticker.Quote, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+symbol).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache read failed")
		}
		return nil, false, nil
	}

	var cq cachedQuote
	if err := json.Unmarshal(raw, &cq); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache entry corrupt")
		return nil, false, nil
	}

	if !cq.Found {
		return nil, true, fmt.Errorf("lookup %s (cached): %w", symbol, ticker.ErrQuoteNotFound)
	}
	if cq.Quote == nil {
		return nil, false, nil
	}
	return cq.Quote, true, nil
}

func (c *QuoteCache) set(ctx context.Context, symbol string, cq cachedQuote) {
	raw, err := json.Marshal(cq)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+symbol, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache write failed")
	}
}
