package tickersync

import (
	"sort"
	"time"

	"github.com/wonny/tickersync/internal/domain/ticker"
)

// AssemblePlan folds the diff and validation outcomes into a persistence plan.
//
// Deletes are unconditional. Accepted candidates become upserts stamped with runTime.
// Rejected candidates go to the rejection report and leave the stored record alone.
// A candidate without an outcome is reported as ProviderUnavailable.
// Actions are ordered deletes first, then upserts, each by symbol.
func AssemblePlan(diff []ticker.DiffEntry, outcomes map[string]ticker.ValidationOutcome, runTime time.Time) *ticker.PersistencePlan {
	runTime = runTime.UTC().Truncate(time.Microsecond)

	var deletes, upserts []ticker.Action
	var rejections []ticker.Rejection
	warnings := 0

	for _, entry := range diff {
		switch entry.Kind {
		case ticker.DiffDelete:
			deletes = append(deletes, ticker.Action{Kind: ticker.ActionDelete, Symbol: entry.Symbol})

		case ticker.DiffAdd, ticker.DiffUpdate:
			outcome, ok := outcomes[entry.Symbol]
			if !ok {
				outcome = unavailable(entry, 0, "no validation outcome")
			}

			if outcome.Accepted && outcome.Record != nil {
				record := outcome.Record.Clone()
				record.Symbol = entry.Symbol
				record.LastUpdated = runTime
				upserts = append(upserts, ticker.Action{Kind: ticker.ActionUpsert, Symbol: entry.Symbol, Record: &record})
				continue
			}

			if outcome.Reason == ticker.ReasonProviderUnavailable {
				warnings++
			}
			rejections = append(rejections, ticker.Rejection{
				Symbol: entry.Symbol,
				Kind:   entry.Kind.String(),
				Reason: outcome.Reason,
				Detail: outcome.Detail,
			})
		}
	}

	sortActions(deletes)
	sortActions(upserts)
	sort.Slice(rejections, func(i, j int) bool {
		return rejections[i].Symbol < rejections[j].Symbol
	})

	actions := make([]ticker.Action, 0, len(deletes)+len(upserts))
	actions = append(actions, deletes...)
	actions = append(actions, upserts...)

	if rejections == nil {
		rejections = []ticker.Rejection{}
	}

	return &ticker.PersistencePlan{
		RunTime:    runTime,
		Actions:    actions,
		Rejections: rejections,
		Warnings:   warnings,
	}
}

func sortActions(actions []ticker.Action) {
	sort.Slice(actions, func(i, j int) bool {
		return actions[i].Symbol < actions[j].Symbol
	})
}
