// Package resale derives flip profitability from a token's sale history.
//
// A flip is a sale of a token that has at least one earlier sale on record;
// its profit is the sale price minus the price of the immediately preceding
// sale of the same token.
package resale

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Sale is one committed sale in token-history order input.
type Sale struct {
	TokenID  int64
	Time     time.Time
	PriceUSD decimal.Decimal
	SellerID *int64
}

// Flip is a resale together with the profit it realized over the prior sale.
type Flip struct {
	TokenID  int64
	SoldAt   time.Time
	Profit   decimal.Decimal
	SellerID *int64
}

// Summary aggregates the resale activity of a single token.
type Summary struct {
	TokenID     int64
	ResaleCount int
	TotalProfit decimal.Decimal
	AvgProfit   decimal.Decimal
}

// Flips pairs each sale with the previous sale of the same token and returns
// one Flip per resale. Sales are grouped by token and ordered by time within
// each token; ties keep input order. First sales of a token produce no flip.
func Flips(sales []Sale) []Flip {
	byToken := make(map[int64][]Sale)
	tokens := make([]int64, 0)
	for _, s := range sales {
		if _, ok := byToken[s.TokenID]; !ok {
			tokens = append(tokens, s.TokenID)
		}
		byToken[s.TokenID] = append(byToken[s.TokenID], s)
	}

	flips := make([]Flip, 0)
	for _, tokenID := range tokens {
		history := byToken[tokenID]
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].Time.Before(history[j].Time)
		})
		for i := 1; i < len(history); i++ {
			flips = append(flips, Flip{
				TokenID:  tokenID,
				SoldAt:   history[i].Time,
				Profit:   history[i].PriceUSD.Sub(history[i-1].PriceUSD),
				SellerID: history[i].SellerID,
			})
		}
	}
	return flips
}

// TopFlips returns the n most profitable flips, most profitable first.
// Equal profits break toward the more recent sale, then the lower token id.
// A non-positive n yields an empty result.
func TopFlips(flips []Flip, n int) []Flip {
	if n <= 0 {
		return []Flip{}
	}
	ranked := make([]Flip, len(flips))
	copy(ranked, flips)
	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].Profit.Cmp(ranked[j].Profit); c != 0 {
			return c > 0
		}
		if !ranked[i].SoldAt.Equal(ranked[j].SoldAt) {
			return ranked[i].SoldAt.After(ranked[j].SoldAt)
		}
		return ranked[i].TokenID < ranked[j].TokenID
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// Summarize rolls flips up per token. Tokens with no resales do not appear.
// Summaries come back ordered by token id.
func Summarize(flips []Flip) []Summary {
	byToken := make(map[int64]*Summary)
	for _, f := range flips {
		s, ok := byToken[f.TokenID]
		if !ok {
			s = &Summary{TokenID: f.TokenID}
			byToken[f.TokenID] = s
		}
		s.ResaleCount++
		s.TotalProfit = s.TotalProfit.Add(f.Profit)
	}

	summaries := make([]Summary, 0, len(byToken))
	for _, s := range byToken {
		s.AvgProfit = s.TotalProfit.Div(decimal.NewFromInt(int64(s.ResaleCount))).Round(2)
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].TokenID < summaries[j].TokenID
	})
	return summaries
}
