package dimension_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reneepyh/ape-index/internal/dimension"
	"github.com/reneepyh/ape-index/internal/domain"
)

func cleanRecord(market, action, buyer string) domain.CleanRecord {
	return domain.CleanRecord{
		TransactionHash: "0xabc",
		Time:            time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Action:          action,
		PriceUSD:        decimal.New(100, 0),
		Market:          market,
		Buyer:           buyer,
		TokenID:         1,
	}
}

func TestDistinctValues(t *testing.T) {
	batch := []domain.CleanRecord{
		cleanRecord("OpenSea", "Sale", "0xa"),
		cleanRecord("Blur", "Sale", "0xb"),
		cleanRecord("OpenSea", "Transfer", "0xa"),
	}

	assert.Equal(t, []string{"OpenSea", "Blur"}, dimension.DistinctMarkets(batch))
	assert.Equal(t, []string{"Sale", "Transfer"}, dimension.DistinctActions(batch))
	assert.Equal(t, []string{"0xa", "0xb"}, dimension.DistinctBuyers(batch))
}

func TestReconcile_AllocatesMonotonicKeys(t *testing.T) {
	existing := map[string]int64{"OpenSea": 1, "LooksRare": 7}

	insertions, merged := dimension.Reconcile([]string{"Blur", "OpenSea", "X2Y2"}, existing)

	require.Len(t, insertions, 2)
	assert.Equal(t, dimension.Entry{ID: 8, Value: "Blur"}, insertions[0])
	assert.Equal(t, dimension.Entry{ID: 9, Value: "X2Y2"}, insertions[1])

	assert.Equal(t, map[string]int64{
		"OpenSea":   1,
		"LooksRare": 7,
		"Blur":      8,
		"X2Y2":      9,
	}, merged)

	// Input mapping is not mutated.
	assert.Equal(t, map[string]int64{"OpenSea": 1, "LooksRare": 7}, existing)
}

func TestReconcile_Idempotent(t *testing.T) {
	_, first := dimension.Reconcile([]string{"OpenSea", "Blur"}, nil)
	insertions, second := dimension.Reconcile([]string{"OpenSea", "Blur"}, first)

	assert.Empty(t, insertions)
	assert.Equal(t, first, second)
}

func TestReconcile_EmptyNewValues(t *testing.T) {
	existing := map[string]int64{"OpenSea": 3}

	insertions, merged := dimension.Reconcile(nil, existing)

	assert.Empty(t, insertions)
	assert.Equal(t, existing, merged)
}

func TestReconcile_StartsAtOne(t *testing.T) {
	insertions, _ := dimension.Reconcile([]string{"OpenSea"}, nil)

	require.Len(t, insertions, 1)
	assert.Equal(t, int64(1), insertions[0].ID)
}

func TestApplyMappings(t *testing.T) {
	batch := []domain.CleanRecord{cleanRecord("OpenSea", "Sale", "0xa")}

	normalized, err := dimension.ApplyMappings(batch,
		map[string]int64{"OpenSea": 1},
		map[string]int64{"Sale": 2},
		map[string]int64{"0xa": 3},
	)

	require.NoError(t, err)
	require.Len(t, normalized, 1)
	assert.Equal(t, int64(1), normalized[0].MarketID)
	assert.Equal(t, int64(2), normalized[0].ActionID)
	assert.Equal(t, int64(3), normalized[0].BuyerID)
	assert.Equal(t, "0xabc", normalized[0].TransactionHash)
	assert.True(t, normalized[0].PriceUSD.Equal(decimal.New(100, 0)))
}

func TestApplyMappings_UnmappedValue(t *testing.T) {
	batch := []domain.CleanRecord{cleanRecord("OpenSea", "Sale", "0xa")}

	_, err := dimension.ApplyMappings(batch,
		map[string]int64{},
		map[string]int64{"Sale": 2},
		map[string]int64{"0xa": 3},
	)

	assert.ErrorIs(t, err, domain.ErrUnmappedValue)
}

func TestRoundTrip_ReverseMappingRecoversStrings(t *testing.T) {
	batch := []domain.CleanRecord{
		cleanRecord("OpenSea", "Sale", "0xa"),
		cleanRecord("Blur", "Transfer", "0xb"),
	}

	_, markets := dimension.Reconcile(dimension.DistinctMarkets(batch), nil)
	_, actions := dimension.Reconcile(dimension.DistinctActions(batch), nil)
	_, buyers := dimension.Reconcile(dimension.DistinctBuyers(batch), nil)

	normalized, err := dimension.ApplyMappings(batch, markets, actions, buyers)
	require.NoError(t, err)

	invert := func(m map[string]int64) map[int64]string {
		out := make(map[int64]string, len(m))
		for v, id := range m {
			out[id] = v
		}
		return out
	}
	marketByID, actionByID, buyerByID := invert(markets), invert(actions), invert(buyers)

	for i, n := range normalized {
		assert.Equal(t, batch[i].Market, marketByID[n.MarketID])
		assert.Equal(t, batch[i].Action, actionByID[n.ActionID])
		assert.Equal(t, batch[i].Buyer, buyerByID[n.BuyerID])
	}
}
