// Package dimension derives and maintains surrogate keys for the market,
// action and address dimensions of the star schema.
//
// Mappings are explicit values passed in and returned, never package state:
// a pipeline run loads the persisted mapping, reconciles the batch against
// it, and threads the merged mapping through the remaining stages.
package dimension

import (
	"fmt"

	"github.com/reneepyh/ape-index/internal/domain"
)

// Entry is a pending dimension insertion: a newly discovered value and the
// surrogate key allocated for it.
type Entry struct {
	ID    int64
	Value string
}

// DistinctMarkets returns the distinct market names in the batch, in
// first-seen order.
func DistinctMarkets(batch []domain.CleanRecord) []string {
	return distinct(batch, func(r domain.CleanRecord) string { return r.Market })
}

// DistinctActions returns the distinct action names in the batch, in
// first-seen order.
func DistinctActions(batch []domain.CleanRecord) []string {
	return distinct(batch, func(r domain.CleanRecord) string { return r.Action })
}

// DistinctBuyers returns the distinct buyer addresses in the batch, in
// first-seen order.
func DistinctBuyers(batch []domain.CleanRecord) []string {
	return distinct(batch, func(r domain.CleanRecord) string { return r.Buyer })
}

func distinct(batch []domain.CleanRecord, field func(domain.CleanRecord) string) []string {
	seen := make(map[string]struct{}, len(batch))
	values := make([]string, 0, len(batch))
	for _, r := range batch {
		v := field(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values
}

// Reconcile merges newly observed values into an existing value→key mapping.
//
// Values already present keep their key untouched. New values are allocated
// keys strictly greater than any existing key, in the order given. Keys are
// never reused: there is no removal path, and re-running Reconcile with the
// same values is a no-op. The returned mapping is a fresh copy; the input
// mapping is not mutated.
func Reconcile(values []string, existing map[string]int64) ([]Entry, map[string]int64) {
	merged := make(map[string]int64, len(existing)+len(values))
	next := int64(1)
	for v, id := range existing {
		merged[v] = id
		if id >= next {
			next = id + 1
		}
	}

	var insertions []Entry
	for _, v := range values {
		if _, ok := merged[v]; ok {
			continue
		}
		insertions = append(insertions, Entry{ID: next, Value: v})
		merged[v] = next
		next++
	}

	return insertions, merged
}

// ApplyMappings replaces each record's market, action and buyer strings with
// their surrogate keys.
//
// A record referencing a value absent from its mapping fails the whole call
// with domain.ErrUnmappedValue: if Reconcile ran on the same batch first this
// cannot happen, so a miss is an invariant violation rather than bad input.
func ApplyMappings(
	batch []domain.CleanRecord,
	markets map[string]int64,
	actions map[string]int64,
	buyers map[string]int64,
) ([]domain.NormalizedRecord, error) {
	normalized := make([]domain.NormalizedRecord, 0, len(batch))

	for _, r := range batch {
		marketID, ok := markets[r.Market]
		if !ok {
			return nil, fmt.Errorf("%w: market %q", domain.ErrUnmappedValue, r.Market)
		}
		actionID, ok := actions[r.Action]
		if !ok {
			return nil, fmt.Errorf("%w: action %q", domain.ErrUnmappedValue, r.Action)
		}
		buyerID, ok := buyers[r.Buyer]
		if !ok {
			return nil, fmt.Errorf("%w: buyer %q", domain.ErrUnmappedValue, r.Buyer)
		}

		normalized = append(normalized, domain.NormalizedRecord{
			TransactionHash: r.TransactionHash,
			Time:            r.Time,
			PriceUSD:        r.PriceUSD,
			TokenID:         r.TokenID,
			MarketID:        marketID,
			ActionID:        actionID,
			BuyerID:         buyerID,
		})
	}

	return normalized, nil
}
