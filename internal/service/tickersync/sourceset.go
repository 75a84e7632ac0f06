package tickersync

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wonny/tickersync/internal/domain/ticker"
)

// ConflictMode decides which listing wins when a symbol appears under two exchanges
type ConflictMode string

const (
	ConflictLastWins         ConflictMode = "last-wins"
	ConflictFirstWins        ConflictMode = "first-wins"
	ConflictExchangePriority ConflictMode = "exchange-priority"
)

// ConflictPolicy is the dual-listing precedence rule
type ConflictPolicy struct {
	Mode     ConflictMode
	Priority []ticker.Exchange // exchange-priority only, highest first
}

// DefaultConflictPolicy returns last-wins in input order
func DefaultConflictPolicy() ConflictPolicy {
	return ConflictPolicy{Mode: ConflictLastWins}
}

// ParseConflictPolicy parses a mode and a comma-separated exchange priority list
func ParseConflictPolicy(mode, priority string) (ConflictPolicy, error) {
	p := ConflictPolicy{Mode: ConflictMode(strings.ToLower(strings.TrimSpace(mode)))}
	switch p.Mode {
	case "":
		p.Mode = ConflictLastWins
	case ConflictLastWins, ConflictFirstWins:
	case ConflictExchangePriority:
		for _, label := range strings.Split(priority, ",") {
			if strings.TrimSpace(label) == "" {
				continue
			}
			ex := ticker.ParseExchange(label)
			if !ex.IsKnown() {
				return p, fmt.Errorf("unknown exchange in priority: %q", label)
			}
			p.Priority = append(p.Priority, ex)
		}
		if len(p.Priority) == 0 {
			p.Priority = []ticker.Exchange{ticker.ExchangeNYSE, ticker.ExchangeNASDAQ}
		}
	default:
		return p, fmt.Errorf("unknown conflict policy: %q", mode)
	}
	return p, nil
}

// rank returns the priority index of ex; unlisted exchanges rank last
func (p ConflictPolicy) rank(ex ticker.Exchange) int {
	for i, e := range p.Priority {
		if e == ex {
			return i
		}
	}
	return len(p.Priority)
}

// replaces reports whether the incoming entry should replace the current one
func (p ConflictPolicy) replaces(current, incoming ticker.SourceEntry) bool {
	switch p.Mode {
	case ConflictFirstWins:
		return false
	case ConflictExchangePriority:
		// ties fall back to input order (later wins)
		return p.rank(incoming.Exchange) <= p.rank(current.Exchange)
	default:
		return true
	}
}

// SourceSetResult is the SourceSet plus what was excluded while building it
type SourceSetResult struct {
	Set       *ticker.SourceSet
	Conflicts []ticker.ConflictingSourceError
	Invalid   []ticker.InvalidSymbolError
}

// BuildSourceSet merges listing inputs, processed in slice order, into one SourceSet.
// Invalid symbols are excluded and reported; conflicting exchanges are resolved by
// policy and the discarded entry is reported.
func BuildSourceSet(inputs []ticker.ListingInput, policy ConflictPolicy) *SourceSetResult {
	result := &SourceSetResult{}
	merged := make(map[string]ticker.SourceEntry)
	var order []string

	for _, input := range inputs {
		for _, raw := range input.Entries {
			symbol := ticker.NormalizeSymbol(raw.Symbol)
			if err := ticker.ValidateSymbol(symbol); err != nil {
				symErr := err.(*ticker.InvalidSymbolError)
				symErr.Symbol = strings.TrimSpace(raw.Symbol)
				symErr.Origin = input.Origin
				result.Invalid = append(result.Invalid, *symErr)
				continue
			}

			exchange := input.Exchange
			if hinted := ticker.ParseExchange(raw.ExchangeHint); hinted.IsKnown() {
				exchange = hinted
			}
			if exchange == "" {
				exchange = ticker.ExchangeUnknown
			}

			incoming := ticker.SourceEntry{
				Symbol:   symbol,
				Exchange: exchange,
				Company:  ticker.NormalizeCompany(raw.Company),
				Origin:   input.Origin,
			}

			current, seen := merged[symbol]
			if !seen {
				merged[symbol] = incoming
				order = append(order, symbol)
				continue
			}

			// UNKNOWN carries no exchange information: it never replaces a
			// known label and is upgraded by one, and neither case is a conflict
			if current.Exchange.IsKnown() != incoming.Exchange.IsKnown() {
				if !current.Exchange.IsKnown() {
					if incoming.Company == nil {
						incoming.Company = current.Company
					}
					current = incoming
				} else if current.Company == nil {
					current.Company = incoming.Company
				}
				merged[symbol] = current
				continue
			}

			if current.Exchange == incoming.Exchange {
				// same listing repeated; keep any company name we learn
				if current.Company == nil {
					current.Company = incoming.Company
					merged[symbol] = current
				}
				continue
			}

			kept, discarded := current, incoming
			if policy.replaces(current, incoming) {
				kept, discarded = incoming, current
			}
			merged[symbol] = kept
			result.Conflicts = append(result.Conflicts, ticker.ConflictingSourceError{
				Symbol:    symbol,
				Kept:      kept,
				Discarded: discarded,
			})

			log.Warn().
				Str("symbol", symbol).
				Str("kept", string(kept.Exchange)).
				Str("kept_origin", kept.Origin).
				Str("discarded", string(discarded.Exchange)).
				Str("discarded_origin", discarded.Origin).
				Str("policy", string(policy.Mode)).
				Msg("Conflicting exchange listing resolved")
		}
	}

	entries := make([]ticker.SourceEntry, 0, len(order))
	for _, symbol := range order {
		entries = append(entries, merged[symbol])
	}
	result.Set = ticker.NewSourceSet(entries)

	if len(result.Invalid) > 0 {
		log.Warn().Int("count", len(result.Invalid)).Msg("Invalid symbols excluded from source set")
	}

	return result
}
