package tickersync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wonny/tickersync/internal/domain/ticker"
)

func strPtr(s string) *string { return &s }

func capPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func fixedRandom() float64 { return 0.5 }

// quoteFunc scripts the provider answer for one call; attempt starts at 1
type quoteFunc func(ctx context.Context, attempt int) (*ticker.Quote, error)

// fakeProvider is a scripted QuoteProvider that counts calls per symbol
type fakeProvider struct {
	mu      sync.Mutex
	scripts map[string]quoteFunc
	calls   map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		scripts: make(map[string]quoteFunc),
		calls:   make(map[string]int),
	}
}

func (p *fakeProvider) quote(symbol string, marketCap int64, company string) *fakeProvider {
	p.scripts[symbol] = func(context.Context, int) (*ticker.Quote, error) {
		q := &ticker.Quote{Symbol: symbol, MarketCap: capPtr(marketCap)}
		if company != "" {
			q.CompanyName = strPtr(company)
		}
		return q, nil
	}
	return p
}

func (p *fakeProvider) script(symbol string, fn quoteFunc) *fakeProvider {
	p.scripts[symbol] = fn
	return p
}

func (p *fakeProvider) LookupQuote(ctx context.Context, symbol string) (*ticker.Quote, error) {
	p.mu.Lock()
	p.calls[symbol]++
	attempt := p.calls[symbol]
	fn, ok := p.scripts[symbol]
	p.mu.Unlock()

	if !ok {
		return nil, ticker.ErrQuoteNotFound
	}
	return fn(ctx, attempt)
}

func (p *fakeProvider) Calls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

func (p *fakeProvider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

// memoryStore is an in-memory SnapshotReader, Persister and TickerCounter
type memoryStore struct {
	mu       sync.Mutex
	snapshot ticker.Snapshot
	loadErr  error
	applyErr error
	applied  []*ticker.PersistencePlan
}

func newMemoryStore(records ...ticker.TickerRecord) *memoryStore {
	return &memoryStore{snapshot: ticker.NewSnapshot(records)}
}

func (m *memoryStore) LoadSnapshot(context.Context) (ticker.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return ticker.Snapshot{}, m.loadErr
	}
	return m.snapshot, nil
}

func (m *memoryStore) ApplyPlan(_ context.Context, plan *ticker.PersistencePlan) (*ticker.ApplyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	m.applied = append(m.applied, plan)
	m.snapshot = m.snapshot.Apply(plan)
	return &ticker.ApplyResult{Deleted: len(plan.Deletes()), Upserted: len(plan.Upserts())}, nil
}

func (m *memoryStore) CountTickers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Len(), nil
}

// memoryRunLog is an in-memory RunLogRepository
type memoryRunLog struct {
	mu   sync.Mutex
	runs map[uuid.UUID]ticker.SyncRun
}

func newMemoryRunLog() *memoryRunLog {
	return &memoryRunLog{runs: make(map[uuid.UUID]ticker.SyncRun)}
}

func (r *memoryRunLog) Create(_ context.Context, run *ticker.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *memoryRunLog) Update(_ context.Context, run *ticker.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return ticker.ErrRunNotFound
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *memoryRunLog) GetByID(_ context.Context, id uuid.UUID) (*ticker.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ticker.ErrRunNotFound
	}
	return &run, nil
}

func (r *memoryRunLog) GetRecent(context.Context, int) ([]*ticker.SyncRun, error) {
	return nil, errors.New("not implemented")
}

// recordingPublisher captures published plans
type recordingPublisher struct {
	mu    sync.Mutex
	plans []*ticker.PersistencePlan
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, _ uuid.UUID, plan *ticker.PersistencePlan) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans = append(p.plans, plan)
	return p.err
}

// recordingInvalidator captures invalidated symbols
type recordingInvalidator struct {
	mu      sync.Mutex
	symbols [][]string
	err     error
}

func (i *recordingInvalidator) Invalidate(_ context.Context, symbols ...string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.symbols = append(i.symbols, symbols)
	return i.err
}

func testValidator(provider ticker.QuoteProvider) *Validator {
	cfg := DefaultValidatorConfig()
	cfg.CallDelay = 0
	return NewValidator(provider, cfg, WithSleeper(noSleep), WithRandom(fixedRandom))
}

func listing(origin string, exchange ticker.Exchange, symbols ...string) ticker.ListingInput {
	in := ticker.ListingInput{Origin: origin, Exchange: exchange}
	for _, s := range symbols {
		in.Entries = append(in.Entries, ticker.ListingEntry{Symbol: s})
	}
	return in
}
