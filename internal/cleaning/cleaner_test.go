package cleaning_test

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reneepyh/ape-index/internal/cleaning"
	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
)

const (
	buyerA = "0x1111111111111111111111111111111111111111"
	buyerB = "0x2222222222222222222222222222222222222222"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func rawRecord(hash, ts, price, buyer string) domain.RawRecord {
	return domain.RawRecord{
		TransactionHash: hash,
		Timestamp:       ts,
		Action:          "Sale",
		Price:           price,
		Market:          "OpenSea",
		Buyer:           buyer,
		TokenID:         1234,
	}
}

func TestClean_TypesAndSortsBatch(t *testing.T) {
	batch := []domain.RawRecord{
		rawRecord("0xccc", "2024-03-02 09:00:00", "($2,000.00)", buyerB),
		rawRecord("0xaaa", "2024-03-01 12:00:00", "1500.00 USDC", buyerA),
	}

	cleaned, stats := cleaning.Clean(batch)

	require.Len(t, cleaned, 2)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 0, stats.Dropped())

	// Sorted ascending by instant.
	assert.Equal(t, "0xaaa", cleaned[0].TransactionHash)
	assert.Equal(t, "0xccc", cleaned[1].TransactionHash)

	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), cleaned[0].Time)
	assert.True(t, cleaned[0].PriceUSD.Equal(decimal.RequireFromString("1500.00")))
	assert.True(t, cleaned[1].PriceUSD.Equal(decimal.RequireFromString("2000.00")))
}

func TestClean_TiesKeepArrivalOrder(t *testing.T) {
	at := "2024-03-01 12:00:00"
	batch := []domain.RawRecord{
		rawRecord("0x1", at, "($100.00)", buyerA),
		rawRecord("0x2", at, "($200.00)", buyerB),
		rawRecord("0x3", at, "($300.00)", buyerA),
	}

	cleaned, _ := cleaning.Clean(batch)

	require.Len(t, cleaned, 3)
	assert.Equal(t, "0x1", cleaned[0].TransactionHash)
	assert.Equal(t, "0x2", cleaned[1].TransactionHash)
	assert.Equal(t, "0x3", cleaned[2].TransactionHash)
}

func TestClean_DropsAndCountsBadRecords(t *testing.T) {
	batch := []domain.RawRecord{
		rawRecord("0x1", "2024-03-01 12:00:00", "($100.00)", buyerA), // kept
		rawRecord("0x2", "2024-03-01 12:01:00", "", buyerA),          // missing price
		rawRecord("0x3", "2024-03-01 12:02:00", "($100.00)", " "),    // missing buyer
		rawRecord("0x4", "2024-03-01 12:03:00", "($100.00)", "bob"),  // invalid buyer
		rawRecord("0x5", "not a time", "($100.00)", buyerA),          // bad timestamp
		rawRecord("0x6", "2024-03-01 12:05:00", "0 WETH", buyerA),    // excluded
		rawRecord("0x7", "2024-03-01 12:06:00", "5 ETH", buyerA),     // unsupported
	}

	cleaned, stats := cleaning.Clean(batch)

	require.Len(t, cleaned, 1)
	assert.Equal(t, "0x1", cleaned[0].TransactionHash)

	assert.Equal(t, 7, stats.Input)
	assert.Equal(t, 1, stats.Kept)
	assert.Equal(t, 6, stats.Dropped())
	assert.Equal(t, 2, stats.MissingField)
	assert.Equal(t, 1, stats.InvalidBuyer)
	assert.Equal(t, 1, stats.BadTimestamp)
	assert.Equal(t, 1, stats.Excluded)
	assert.Equal(t, 1, stats.UnsupportedCurrency)
	assert.Equal(t, 0, stats.MalformedPrice)
}

func TestClean_AcceptsAlternateTimestampLayouts(t *testing.T) {
	batch := []domain.RawRecord{
		rawRecord("0x1", "Mar-01-2024 3:04:05 PM", "($100.00)", buyerA),
		rawRecord("0x2", "2024-03-01T16:00:00Z", "($200.00)", buyerB),
	}

	cleaned, stats := cleaning.Clean(batch)

	require.Len(t, cleaned, 2)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC), cleaned[0].Time)
	assert.Equal(t, time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC), cleaned[1].Time)
}

func TestClean_EmptyBatch(t *testing.T) {
	cleaned, stats := cleaning.Clean(nil)

	assert.Empty(t, cleaned)
	assert.Equal(t, 0, stats.Input)
	assert.Equal(t, 0, stats.Kept)
}
