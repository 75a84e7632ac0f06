package cmd

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wonny/tickersync/internal/domain/ticker"
	rediscache "github.com/wonny/tickersync/internal/infra/cache/redis"
	"github.com/wonny/tickersync/internal/infra/database/postgres"
	tickerrepo "github.com/wonny/tickersync/internal/infra/database/postgres/ticker"
	"github.com/wonny/tickersync/internal/infra/external/yahoo"
	"github.com/wonny/tickersync/internal/infra/messaging/kafka"
	"github.com/wonny/tickersync/internal/pkg/config"
	"github.com/wonny/tickersync/internal/service/tickersync"
)

// app holds the shared infrastructure of one command invocation
type app struct {
	pool      *postgres.Pool
	stocks    *tickerrepo.StockRepository
	runs      *tickerrepo.SyncRunRepository
	redis     *goredis.Client
	publisher *kafka.Publisher
}

// openApp connects to PostgreSQL and, when enabled, Redis
func openApp(ctx context.Context, c *config.Config) (*app, error) {
	pool, err := postgres.NewPool(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &app{
		pool:   pool,
		stocks: tickerrepo.NewStockRepository(pool),
		runs:   tickerrepo.NewSyncRunRepository(pool),
	}

	if c.Redis.Enabled {
		client, err := rediscache.NewClient(ctx, c.Redis.Addr, c.Redis.Password, c.Redis.DB, c.Redis.PoolSize)
		if err != nil {
			// the cache is optional; run without it
			log.Warn().Err(err).Msg("Redis unavailable, quote cache disabled")
		} else {
			a.redis = client
		}
	}

	return a, nil
}

// Close releases all connections
func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Kafka writer")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	a.pool.Close()
}

// quoteProvider builds the Yahoo client, behind the Redis cache when connected.
// The cache is returned separately (nil without Redis) so the service can invalidate it.
func (a *app) quoteProvider(c *config.Config) (ticker.QuoteProvider, *rediscache.QuoteCache) {
	client := yahoo.NewClient(
		yahoo.WithBaseURL(c.Provider.BaseURL),
		yahoo.WithTimeout(c.Provider.Timeout),
		yahoo.WithUserAgent(c.Provider.UserAgent),
	)
	if a.redis == nil {
		return client, nil
	}
	cache := rediscache.NewQuoteCache(a.redis, client, c.Redis.QuoteTTL)
	return cache, cache
}

// newService wires the sync service
func (a *app) newService(c *config.Config) (*tickersync.Service, error) {
	svcConfig, err := serviceConfig(c)
	if err != nil {
		return nil, err
	}

	provider, cache := a.quoteProvider(c)
	validator := tickersync.NewValidator(provider, validatorConfig(c))

	opts := []tickersync.Option{
		tickersync.WithRunLog(a.runs),
		tickersync.WithCounter(a.stocks),
	}
	if cache != nil {
		opts = append(opts, tickersync.WithQuoteInvalidator(cache))
	}
	if c.Kafka.Enabled {
		a.publisher = kafka.NewPublisher(c.Kafka.Brokers, c.Kafka.Topic)
		opts = append(opts, tickersync.WithPublisher(a.publisher))
	}

	return tickersync.NewService(svcConfig, a.stocks, validator, a.stocks, opts...), nil
}

func serviceConfig(c *config.Config) (*tickersync.Config, error) {
	policy, err := tickersync.ParseConflictPolicy(c.Sync.ConflictPolicy, c.Sync.ExchangePriority)
	if err != nil {
		return nil, fmt.Errorf("conflict policy: %w", err)
	}
	return &tickersync.Config{
		ConflictPolicy: policy,
		RunTimeout:     c.Sync.RunTimeout,
		DryRun:         c.Sync.DryRun,
	}, nil
}

func validatorConfig(c *config.Config) tickersync.ValidatorConfig {
	return tickersync.ValidatorConfig{
		BatchSize: c.Sync.BatchSize,
		Workers:   c.Sync.Workers,
		CallDelay: c.Sync.CallDelay,
		Retry: tickersync.RetryPolicy{
			MaxAttempts: c.Sync.RetryAttempts,
			BaseDelay:   c.Sync.RetryBaseDelay,
			MaxDelay:    c.Sync.RetryMaxDelay,
			Jitter:      c.Sync.RetryJitter,
		},
		RequireCompany: c.Sync.RequireCompany,
	}
}
