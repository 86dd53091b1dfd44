// Package cleaning filters and types a scraped batch of raw trade rows.
package cleaning

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
	"github.com/reneepyh/ape-index/internal/pricing"
)

// timeLayouts are the accepted timestamp encodings, tried in order. The page
// renders UTC wall-clock times; all parsed instants are pinned to UTC.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"Jan-02-2006 3:04:05 PM",
	time.RFC3339,
}

// Stats counts what happened to a batch during cleaning. Dropped records are
// never silently discarded; every drop increments exactly one counter.
type Stats struct {
	Input               int
	Kept                int
	MissingField        int
	InvalidBuyer        int
	BadTimestamp        int
	Excluded            int
	UnsupportedCurrency int
	MalformedPrice      int
}

// Dropped is the total number of records removed from the batch.
func (s Stats) Dropped() int {
	return s.Input - s.Kept
}

// Clean filters and types a raw batch.
//
// Records with a missing price or buyer are dropped before price parsing;
// records whose price the normalizer rejects or whose timestamp does not
// parse are dropped individually without aborting the batch. The output is
// sorted ascending by instant with ties keeping arrival order, which is the
// input contract for seller inference and resale analysis downstream.
func Clean(batch []domain.RawRecord) ([]domain.CleanRecord, Stats) {
	stats := Stats{Input: len(batch)}
	cleaned := make([]domain.CleanRecord, 0, len(batch))

	for _, raw := range batch {
		if strings.TrimSpace(raw.Price) == "" || strings.TrimSpace(raw.Buyer) == "" {
			stats.MissingField++
			continue
		}

		if !common.IsHexAddress(raw.Buyer) {
			stats.InvalidBuyer++
			logger.Debug("dropping record with invalid buyer address",
				zap.String("tx_hash", raw.TransactionHash),
				zap.String("buyer", raw.Buyer),
			)
			continue
		}

		ts, err := parseTimestamp(raw.Timestamp)
		if err != nil {
			stats.BadTimestamp++
			logger.Warn("dropping record with unparseable timestamp",
				zap.String("tx_hash", raw.TransactionHash),
				zap.String("timestamp", raw.Timestamp),
			)
			continue
		}

		price, err := pricing.Parse(raw.Price)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrExcludedRecord):
				stats.Excluded++
			case errors.Is(err, domain.ErrMalformedPrice):
				stats.MalformedPrice++
				logger.Warn("dropping record with malformed price",
					zap.String("tx_hash", raw.TransactionHash),
					zap.String("price", raw.Price),
				)
			default:
				stats.UnsupportedCurrency++
			}
			continue
		}

		cleaned = append(cleaned, domain.CleanRecord{
			TransactionHash: raw.TransactionHash,
			Time:            ts,
			Action:          raw.Action,
			PriceUSD:        price,
			Market:          raw.Market,
			Buyer:           raw.Buyer,
			TokenID:         raw.TokenID,
		})
	}

	// Stable: equal instants keep their arrival order.
	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].Time.Before(cleaned[j].Time)
	})

	stats.Kept = len(cleaned)
	return cleaned, stats
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	var lastErr error
	for _, layout := range timeLayouts {
		ts, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return ts.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
