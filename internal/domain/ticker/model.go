package ticker

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Exchange
// =============================================================================

// Exchange is the listing venue of a ticker
type Exchange string

const (
	ExchangeNYSE    Exchange = "NYSE"
	ExchangeNASDAQ  Exchange = "NASDAQ"
	ExchangeUnknown Exchange = "UNKNOWN"
)

// ParseExchange maps a free-form label (file hint, DB column) to an Exchange
func ParseExchange(label string) Exchange {
	switch normalizeLabel(label) {
	case "NYSE":
		return ExchangeNYSE
	case "NASDAQ":
		return ExchangeNASDAQ
	default:
		return ExchangeUnknown
	}
}

// IsKnown reports whether the exchange is one of the supported venues
func (e Exchange) IsKnown() bool {
	return e == ExchangeNYSE || e == ExchangeNASDAQ
}

// =============================================================================
// TickerRecord
// =============================================================================

// TickerRecord is one row of the ticker table. Identity is Symbol.
type TickerRecord struct {
	Symbol      string           `json:"symbol"`
	Exchange    Exchange         `json:"exchange"`
	Company     *string          `json:"company,omitempty"`
	MarketCap   *decimal.Decimal `json:"market_cap,omitempty"`
	LastUpdated time.Time        `json:"last_updated"`
}

// Clone returns a deep copy so callers can modify the result freely
func (r TickerRecord) Clone() TickerRecord {
	out := r
	if r.Company != nil {
		c := *r.Company
		out.Company = &c
	}
	if r.MarketCap != nil {
		mc := *r.MarketCap
		out.MarketCap = &mc
	}
	return out
}

// CompanyName returns the company name or "" when unknown
func (r TickerRecord) CompanyName() string {
	if r.Company == nil {
		return ""
	}
	return *r.Company
}

// =============================================================================
// Listing inputs / SourceSet
// =============================================================================

// ListingEntry is one pre-parsed line of an exchange listing file
type ListingEntry struct {
	Symbol       string
	ExchangeHint string  // optional, overrides the input-level exchange when known
	Company      *string // optional, present in pipe-delimited listing files
}

// ListingInput is one listing source (file, URL) after parsing.
// Err is set when the source could not be read; Entries is then empty.
type ListingInput struct {
	Origin   string   // file name or URL
	Exchange Exchange // inferred from the origin
	Entries  []ListingEntry
	Err      error
}

// SourceEntry is the authoritative listing of one symbol
type SourceEntry struct {
	Symbol   string   `json:"symbol"`
	Exchange Exchange `json:"exchange"`
	Company  *string  `json:"company,omitempty"`
	Origin   string   `json:"origin"`
}

// SourceSet maps symbol to its authoritative listing. Immutable once built.
type SourceSet struct {
	entries map[string]SourceEntry
}

// NewSourceSet builds a SourceSet from entries; later duplicates replace earlier ones
func NewSourceSet(entries []SourceEntry) *SourceSet {
	m := make(map[string]SourceEntry, len(entries))
	for _, e := range entries {
		m[e.Symbol] = e
	}
	return &SourceSet{entries: m}
}

// Len returns the number of symbols
func (s *SourceSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Get looks up a symbol
func (s *SourceSet) Get(symbol string) (SourceEntry, bool) {
	if s == nil {
		return SourceEntry{}, false
	}
	e, ok := s.entries[symbol]
	return e, ok
}

// Symbols returns all symbols in lexicographic order
func (s *SourceSet) Symbols() []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.entries)
}

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is the persisted ticker table at the start of a run. Read-only.
type Snapshot struct {
	records map[string]TickerRecord
}

// NewSnapshot builds a Snapshot from records
func NewSnapshot(records []TickerRecord) Snapshot {
	m := make(map[string]TickerRecord, len(records))
	for _, r := range records {
		m[r.Symbol] = r.Clone()
	}
	return Snapshot{records: m}
}

// Len returns the number of records
func (s Snapshot) Len() int {
	return len(s.records)
}

// Get returns a copy of the record for symbol
func (s Snapshot) Get(symbol string) (TickerRecord, bool) {
	r, ok := s.records[symbol]
	if !ok {
		return TickerRecord{}, false
	}
	return r.Clone(), true
}

// Symbols returns all symbols in lexicographic order
func (s Snapshot) Symbols() []string {
	return sortedKeys(s.records)
}

// Apply returns the snapshot that results from applying plan. The receiver is not modified.
func (s Snapshot) Apply(plan *PersistencePlan) Snapshot {
	next := make(map[string]TickerRecord, len(s.records))
	for sym, r := range s.records {
		next[sym] = r.Clone()
	}
	if plan != nil {
		for _, a := range plan.Actions {
			switch a.Kind {
			case ActionDelete:
				delete(next, a.Symbol)
			case ActionUpsert:
				if a.Record != nil {
					next[a.Symbol] = a.Record.Clone()
				}
			}
		}
	}
	return Snapshot{records: next}
}

// =============================================================================
// DiffEntry
// =============================================================================

// DiffKind classifies a symbol after reconciliation
type DiffKind int

const (
	DiffUnchanged DiffKind = iota
	DiffAdd
	DiffUpdate
	DiffDelete
)

func (k DiffKind) String() string {
	switch k {
	case DiffAdd:
		return "add"
	case DiffUpdate:
		return "update"
	case DiffDelete:
		return "delete"
	default:
		return "unchanged"
	}
}

// DiffEntry is the reconciliation verdict for one symbol.
//
//	Add:       Proposed set, Existing nil
//	Update:    Existing and Proposed set
//	Delete:    Existing set, Proposed nil
//	Unchanged: Existing set
type DiffEntry struct {
	Kind     DiffKind
	Symbol   string
	Existing *TickerRecord
	Proposed *TickerRecord
	Source   *SourceEntry // authoritative listing; nil for Delete
	Changes  []string     // field names that differ (Update only)
}

// IsCandidate reports whether the entry needs external validation
func (d DiffEntry) IsCandidate() bool {
	return d.Kind == DiffAdd || d.Kind == DiffUpdate
}

// DiffSummary counts entries per kind
type DiffSummary struct {
	Adds      int `json:"adds"`
	Updates   int `json:"updates"`
	Deletes   int `json:"deletes"`
	Unchanged int `json:"unchanged"`
}

// Summarize counts diff entries per kind
func Summarize(entries []DiffEntry) DiffSummary {
	var s DiffSummary
	for _, e := range entries {
		switch e.Kind {
		case DiffAdd:
			s.Adds++
		case DiffUpdate:
			s.Updates++
		case DiffDelete:
			s.Deletes++
		default:
			s.Unchanged++
		}
	}
	return s
}

// =============================================================================
// Validation
// =============================================================================

// RejectReason explains why a candidate was not accepted
type RejectReason string

const (
	ReasonNoMarketCapData     RejectReason = "NoMarketCapData"
	ReasonProviderUnavailable RejectReason = "ProviderUnavailable"
	ReasonNoCompanyName       RejectReason = "NoCompanyName"
)

// Quote is the logical answer of the market-data provider for one symbol
type Quote struct {
	Symbol      string           `json:"symbol"`
	MarketCap   *decimal.Decimal `json:"market_cap,omitempty"`
	CompanyName *string          `json:"company_name,omitempty"`
}

// ValidationOutcome is a candidate DiffEntry plus the validator's verdict
type ValidationOutcome struct {
	Entry    DiffEntry
	Accepted bool
	Record   *TickerRecord // enriched record when Accepted
	Reason   RejectReason  // set when rejected
	Detail   string
	Attempts int
}

// =============================================================================
// PersistencePlan
// =============================================================================

// ActionKind is the persistence operation for one symbol
type ActionKind string

const (
	ActionDelete ActionKind = "delete"
	ActionUpsert ActionKind = "upsert"
)

// Action is one persistence operation
type Action struct {
	Kind   ActionKind    `json:"kind"`
	Symbol string        `json:"symbol"`
	Record *TickerRecord `json:"record,omitempty"`
}

// Rejection is one entry of the rejection report
type Rejection struct {
	Symbol string       `json:"symbol"`
	Kind   string       `json:"kind"` // add, update
	Reason RejectReason `json:"reason"`
	Detail string       `json:"detail,omitempty"`
}

// PersistencePlan is the only artifact handed to the Persister
type PersistencePlan struct {
	RunTime    time.Time   `json:"run_time"`
	Actions    []Action    `json:"actions"`
	Rejections []Rejection `json:"rejections"`
	Warnings   int         `json:"warnings"`
}

// Deletes returns the symbols scheduled for deletion, in plan order
func (p *PersistencePlan) Deletes() []string {
	var out []string
	for _, a := range p.Actions {
		if a.Kind == ActionDelete {
			out = append(out, a.Symbol)
		}
	}
	return out
}

// Upserts returns the records scheduled for upsert, in plan order
func (p *PersistencePlan) Upserts() []TickerRecord {
	var out []TickerRecord
	for _, a := range p.Actions {
		if a.Kind == ActionUpsert && a.Record != nil {
			out = append(out, *a.Record)
		}
	}
	return out
}

// IsEmpty reports whether the plan has no actions
func (p *PersistencePlan) IsEmpty() bool {
	return p == nil || len(p.Actions) == 0
}

// Encode returns the canonical JSON form of the plan. Identical inputs give identical bytes.
func (p *PersistencePlan) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// ApplyResult is what the Persister reports back
type ApplyResult struct {
	Deleted  int `json:"deleted"`
	Upserted int `json:"upserted"`
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
