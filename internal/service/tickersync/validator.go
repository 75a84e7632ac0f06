package tickersync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wonny/tickersync/internal/domain/ticker"
	"golang.org/x/sync/errgroup"
)

// ValidatorConfig controls batching, concurrency and provider pacing
type ValidatorConfig struct {
	BatchSize      int           // symbols per batch
	Workers        int           // concurrent batches
	CallDelay      time.Duration // pause before every provider call except the run's first
	Retry          RetryPolicy
	RequireCompany bool // reject candidates whose company name cannot be resolved
}

// DefaultValidatorConfig returns the production defaults
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		BatchSize: 50,
		Workers:   6,
		CallDelay: 200 * time.Millisecond,
		Retry:     DefaultRetryPolicy(),
	}
}

// ValidatorOption configures a Validator
type ValidatorOption func(*Validator)

// WithSleeper replaces the context-aware sleep (tests)
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ValidatorOption {
	return func(v *Validator) {
		v.sleep = sleep
	}
}

// WithRandom replaces the jitter source (tests)
func WithRandom(random func() float64) ValidatorOption {
	return func(v *Validator) {
		v.random = random
	}
}

// Validator checks candidates against the market-data provider
type Validator struct {
	provider ticker.QuoteProvider
	config   ValidatorConfig
	sleep    func(ctx context.Context, d time.Duration) error
	random   func() float64
}

// NewValidator creates a validator
func NewValidator(provider ticker.QuoteProvider, config ValidatorConfig, opts ...ValidatorOption) *Validator {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultValidatorConfig().BatchSize
	}
	if config.Workers <= 0 {
		config.Workers = DefaultValidatorConfig().Workers
	}

	v := &Validator{
		provider: provider,
		config:   config,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidationResult holds exactly one outcome per candidate symbol
type ValidationResult struct {
	Outcomes map[string]ticker.ValidationOutcome
	Accepted int
	Rejected int
	Warnings int // ProviderUnavailable outcomes
	Batches  int
}

// Validate looks up every Add/Update candidate and returns one outcome per symbol.
// Delete and Unchanged entries are ignored and never reach the provider.
// When ctx ends, candidates still pending are rejected as ProviderUnavailable;
// outcomes already collected are kept.
func (v *Validator) Validate(ctx context.Context, entries []ticker.DiffEntry) *ValidationResult {
	var candidates []ticker.DiffEntry
	for _, e := range entries {
		if e.IsCandidate() {
			candidates = append(candidates, e)
		}
	}

	results := newOutcomeSet(len(candidates))
	batches := makeBatches(candidates, v.config.BatchSize)

	log.Info().
		Int("candidates", len(candidates)).
		Int("batches", len(batches)).
		Int("workers", v.config.Workers).
		Msg("Validating candidates")

	// SetLimit makes Go block while all workers are busy, so at most
	// Workers batches are in flight at any time.
	g := new(errgroup.Group)
	g.SetLimit(v.config.Workers)

	dispatched := 0
	for i, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			v.runBatch(ctx, i, batch, results)
			return nil
		})
		dispatched++
	}
	_ = g.Wait()

	if dispatched < len(batches) {
		log.Warn().
			Int("dispatched", dispatched).
			Int("batches", len(batches)).
			Msg("Validation stopped before all batches were dispatched")
	}

	for _, c := range candidates {
		if !results.has(c.Symbol) {
			results.put(unavailable(c, 0, "not validated before run deadline"))
		}
	}

	out := &ValidationResult{Outcomes: results.outcomes, Batches: len(batches)}
	for _, o := range out.Outcomes {
		switch {
		case o.Accepted:
			out.Accepted++
		case o.Reason == ticker.ReasonProviderUnavailable:
			out.Rejected++
			out.Warnings++
		default:
			out.Rejected++
		}
	}

	log.Info().
		Int("accepted", out.Accepted).
		Int("rejected", out.Rejected).
		Int("warnings", out.Warnings).
		Msg("Validation completed")

	return out
}

// runBatch validates one batch sequentially. Every call but the first of batch 0
// waits CallDelay, so the pause also separates consecutive batches.
func (v *Validator) runBatch(ctx context.Context, index int, batch []ticker.DiffEntry, results *outcomeSet) {
	logger := log.With().Int("batch", index).Logger()
	logger.Debug().Int("size", len(batch)).Msg("Batch started")

	for j, entry := range batch {
		if (index > 0 || j > 0) && v.config.CallDelay > 0 {
			if err := v.sleep(ctx, v.config.CallDelay); err != nil {
				results.put(unavailable(entry, 0, fmt.Sprintf("run cancelled: %v", err)))
				continue
			}
		}
		results.put(v.validateOne(ctx, entry))
	}

	logger.Debug().Msg("Batch finished")
}

// validateOne runs the retry state machine for a single candidate
func (v *Validator) validateOne(ctx context.Context, entry ticker.DiffEntry) ticker.ValidationOutcome {
	retrier := NewRetrier(v.config.Retry, v.random)

	for {
		if err := ctx.Err(); err != nil {
			return unavailable(entry, retrier.Attempts(), fmt.Sprintf("run cancelled: %v", err))
		}

		quote, err := v.provider.LookupQuote(ctx, entry.Symbol)
		transient := ticker.IsTransient(err) ||
			(errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil)

		switch retrier.Observe(err, transient) {
		case StepDone:
			return v.judge(entry, quote, retrier.Attempts())

		case StepGiveUp:
			if ticker.IsNotFound(err) {
				return rejected(entry, ticker.ReasonNoMarketCapData, retrier.Attempts(), "quote not found")
			}
			log.Warn().
				Err(err).
				Str("symbol", entry.Symbol).
				Int("attempts", retrier.Attempts()).
				Msg("Provider unavailable for symbol")
			return unavailable(entry, retrier.Attempts(), err.Error())

		case StepBackoff:
			log.Debug().
				Err(err).
				Str("symbol", entry.Symbol).
				Int("attempt", retrier.Attempts()).
				Dur("backoff", retrier.Delay()).
				Msg("Retrying quote lookup")
			if err := v.sleep(ctx, retrier.Delay()); err != nil {
				return unavailable(entry, retrier.Attempts(), fmt.Sprintf("run cancelled: %v", err))
			}
			retrier.Waited()
		}
	}
}

// judge applies the acceptance criteria and enriches the proposed record
func (v *Validator) judge(entry ticker.DiffEntry, quote *ticker.Quote, attempts int) ticker.ValidationOutcome {
	if quote == nil || quote.MarketCap == nil || !quote.MarketCap.IsPositive() {
		return rejected(entry, ticker.ReasonNoMarketCapData, attempts, "market cap missing or zero")
	}

	var record ticker.TickerRecord
	if entry.Proposed != nil {
		record = entry.Proposed.Clone()
	} else {
		record = ticker.TickerRecord{Symbol: entry.Symbol, Exchange: ticker.ExchangeUnknown}
	}

	mc := *quote.MarketCap
	record.MarketCap = &mc

	// a company name from the listing is authoritative; otherwise take the provider's
	sourceNamed := entry.Source != nil && entry.Source.Company != nil
	if !sourceNamed {
		if name := ticker.NormalizeCompany(quote.CompanyName); name != nil {
			record.Company = name
		}
	}

	if v.config.RequireCompany && record.Company == nil {
		return rejected(entry, ticker.ReasonNoCompanyName, attempts, "company name unresolved")
	}

	return ticker.ValidationOutcome{
		Entry:    entry,
		Accepted: true,
		Record:   &record,
		Attempts: attempts,
	}
}

func rejected(entry ticker.DiffEntry, reason ticker.RejectReason, attempts int, detail string) ticker.ValidationOutcome {
	return ticker.ValidationOutcome{
		Entry:    entry,
		Reason:   reason,
		Detail:   detail,
		Attempts: attempts,
	}
}

func unavailable(entry ticker.DiffEntry, attempts int, detail string) ticker.ValidationOutcome {
	return rejected(entry, ticker.ReasonProviderUnavailable, attempts, detail)
}

// makeBatches splits candidates into fixed-size batches, preserving order
func makeBatches(entries []ticker.DiffEntry, size int) [][]ticker.DiffEntry {
	var batches [][]ticker.DiffEntry
	for start := 0; start < len(entries); start += size {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		batches = append(batches, entries[start:end])
	}
	return batches
}

// outcomeSet is the only state shared by workers
type outcomeSet struct {
	mu       sync.Mutex
	outcomes map[string]ticker.ValidationOutcome
}

func newOutcomeSet(capacity int) *outcomeSet {
	return &outcomeSet{outcomes: make(map[string]ticker.ValidationOutcome, capacity)}
}

func (s *outcomeSet) put(o ticker.ValidationOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.outcomes[o.Entry.Symbol]; exists {
		return
	}
	s.outcomes[o.Entry.Symbol] = o
}

func (s *outcomeSet) has(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.outcomes[symbol]
	return ok
}

// sleepContext waits for d or until ctx ends
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
