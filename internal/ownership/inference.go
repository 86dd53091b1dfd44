// Package ownership reconstructs per-token ownership chains and infers the
// implicit seller of each resale.
//
// The trading-activity page only exposes the buyer of a trade. The seller is
// recovered by ordering every known sale of a token chronologically and
// taking the buyer of the immediately preceding sale. Because the previous
// sale may have been committed by an earlier pipeline run, inference merges
// the current batch with the persisted sale history of the affected tokens.
package ownership

import (
	"sort"
	"time"

	"github.com/reneepyh/ape-index/internal/domain"
)

// saleKey identifies an exact (token, time, buyer) tuple for deduplicating
// sales that appear both in the persisted history and in the current batch
// (the overlap window used to bridge runs).
type saleKey struct {
	tokenID int64
	unixNs  int64
	buyerID int64
}

// mergedSale is one position in a token's chronological chain. A sale coming
// from the current batch carries its transaction hashes; prior sales carry
// none and contribute context only.
type mergedSale struct {
	time     time.Time
	buyerID  int64
	txHashes []string
}

// InferSellers assigns a seller to every transaction in the current batch.
//
// Prior sales are the authoritative history already committed by earlier
// runs; the current batch must be chronologically sorted (the cleaner's
// output contract). The result maps transaction hash to seller key. A nil
// seller means the merged history holds no earlier sale of the token, so the
// record is its first sale in the retained dataset. Only current-batch
// transactions are emitted.
func InferSellers(current []domain.NormalizedRecord, prior []domain.TokenSale) map[string]*int64 {
	chains := make(map[int64][]mergedSale)
	positions := make(map[saleKey]int)

	// Prior sales first, deduplicated among themselves.
	for _, p := range prior {
		key := saleKey{tokenID: p.TokenID, unixNs: p.Time.UnixNano(), buyerID: p.BuyerID}
		if _, ok := positions[key]; ok {
			continue
		}
		chains[p.TokenID] = append(chains[p.TokenID], mergedSale{time: p.Time, buyerID: p.BuyerID})
		positions[key] = len(chains[p.TokenID]) - 1
	}

	// Current batch: a record duplicating a prior tuple attaches its hash to
	// the existing chain position instead of adding a second one.
	for _, r := range current {
		key := saleKey{tokenID: r.TokenID, unixNs: r.Time.UnixNano(), buyerID: r.BuyerID}
		if pos, ok := positions[key]; ok {
			chains[r.TokenID][pos].txHashes = append(chains[r.TokenID][pos].txHashes, r.TransactionHash)
			continue
		}
		chains[r.TokenID] = append(chains[r.TokenID], mergedSale{
			time:     r.Time,
			buyerID:  r.BuyerID,
			txHashes: []string{r.TransactionHash},
		})
		positions[key] = len(chains[r.TokenID]) - 1
	}

	sellers := make(map[string]*int64, len(current))

	for _, chain := range chains {
		// Stable: equal instants keep insertion order, which places committed
		// history before the current batch and preserves batch arrival order.
		sort.SliceStable(chain, func(i, j int) bool {
			return chain[i].time.Before(chain[j].time)
		})

		for i, sale := range chain {
			if len(sale.txHashes) == 0 {
				continue // prior sale, context only
			}

			var seller *int64
			if i > 0 {
				id := chain[i-1].buyerID
				seller = &id
			}
			for _, hash := range sale.txHashes {
				sellers[hash] = seller
			}
		}
	}

	return sellers
}
