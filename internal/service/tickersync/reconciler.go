package tickersync

import (
	"sort"

	"github.com/wonny/tickersync/internal/domain/ticker"
)

// Tracked fields reported in DiffEntry.Changes
const (
	FieldExchange  = "exchange"
	FieldCompany   = "company"
	FieldMarketCap = "market_cap"
)

// Reconcile computes the three-way diff between the authoritative source set and
// the persisted snapshot. Every symbol of either side appears in exactly one entry;
// entries are ordered by symbol. Pure: no I/O, inputs are not modified.
//
// Field policy for symbols on both sides:
//   - exchange: exact comparison
//   - company:  exact comparison, only when the source supplies a name
//   - market cap: presence only; a record without one needs enrichment
func Reconcile(source *ticker.SourceSet, snapshot ticker.Snapshot) []ticker.DiffEntry {
	entries := make([]ticker.DiffEntry, 0, source.Len()+snapshot.Len())

	for _, symbol := range source.Symbols() {
		src, _ := source.Get(symbol)
		existing, ok := snapshot.Get(symbol)
		if !ok {
			proposed := ticker.TickerRecord{
				Symbol:   symbol,
				Exchange: src.Exchange,
				Company:  src.Company,
			}
			entries = append(entries, ticker.DiffEntry{
				Kind:     ticker.DiffAdd,
				Symbol:   symbol,
				Proposed: &proposed,
				Source:   &src,
			})
			continue
		}

		proposed, changes := diffFields(src, existing)
		if len(changes) == 0 {
			entries = append(entries, ticker.DiffEntry{
				Kind:     ticker.DiffUnchanged,
				Symbol:   symbol,
				Existing: &existing,
				Source:   &src,
			})
			continue
		}

		entries = append(entries, ticker.DiffEntry{
			Kind:     ticker.DiffUpdate,
			Symbol:   symbol,
			Existing: &existing,
			Proposed: &proposed,
			Source:   &src,
			Changes:  changes,
		})
	}

	for _, symbol := range snapshot.Symbols() {
		if _, ok := source.Get(symbol); ok {
			continue
		}
		existing, _ := snapshot.Get(symbol)
		entries = append(entries, ticker.DiffEntry{
			Kind:     ticker.DiffDelete,
			Symbol:   symbol,
			Existing: &existing,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Symbol < entries[j].Symbol
	})

	return entries
}

// diffFields returns the proposed record and the names of the fields that differ
func diffFields(src ticker.SourceEntry, existing ticker.TickerRecord) (ticker.TickerRecord, []string) {
	proposed := existing.Clone()
	var changes []string

	if existing.Exchange != src.Exchange {
		proposed.Exchange = src.Exchange
		changes = append(changes, FieldExchange)
	}

	if src.Company != nil && existing.CompanyName() != *src.Company {
		name := *src.Company
		proposed.Company = &name
		changes = append(changes, FieldCompany)
	}

	if existing.MarketCap == nil {
		changes = append(changes, FieldMarketCap)
	}

	return proposed, changes
}

// Candidates returns the entries that need external validation (adds and updates)
func Candidates(entries []ticker.DiffEntry) []ticker.DiffEntry {
	var out []ticker.DiffEntry
	for _, e := range entries {
		if e.IsCandidate() {
			out = append(out, e)
		}
	}
	return out
}
