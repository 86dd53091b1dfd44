package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is a single row scraped from the trading-activity table.
// Field values are kept exactly as they appear on the page; typing and
// validation happen in the cleaning stage.
type RawRecord struct {
	TransactionHash string `json:"transaction_hash"`
	Timestamp       string `json:"timestamp"`
	Action          string `json:"action"`
	Price           string `json:"price"`
	Market          string `json:"market"`
	Buyer           string `json:"buyer"`
	TokenID         int64  `json:"token_id"`
}

// CleanRecord is a RawRecord that survived cleaning: the timestamp is parsed
// into a UTC instant and the price is a non-negative USD amount.
type CleanRecord struct {
	TransactionHash string
	Time            time.Time
	Action          string
	PriceUSD        decimal.Decimal
	Market          string
	Buyer           string
	TokenID         int64
}

// NormalizedRecord is a CleanRecord whose market, action and buyer strings
// have been replaced by their dimension surrogate keys.
type NormalizedRecord struct {
	TransactionHash string
	Time            time.Time
	PriceUSD        decimal.Decimal
	TokenID         int64
	MarketID        int64
	ActionID        int64
	BuyerID         int64
}

// TokenSale is one committed sale of a token, in the minimal shape the seller
// inference needs to rebuild the ownership chain across pipeline runs.
type TokenSale struct {
	TokenID int64
	Time    time.Time
	BuyerID int64
}

// BatchEvent announces that the scrape emitter finished a crawl and a raw
// batch is ready for the pipeline.
type BatchEvent struct {
	// BatchKey is a ULID identifying the scraped batch
	BatchKey string `json:"batch_key"`
	// RecordCount is the number of raw rows in the batch
	RecordCount int `json:"record_count"`
	// ScrapedAt is when the crawl finished
	ScrapedAt time.Time `json:"scraped_at"`
}

// Interval selects the analytics time window.
type Interval int

const (
	// IntervalLast7Days covers the trailing 7 days
	IntervalLast7Days Interval = iota
	// IntervalLast30Days covers the trailing 30 days
	IntervalLast30Days
	// IntervalLastYear covers the trailing 365 days
	IntervalLastYear
	// IntervalAllTime covers the full retained history
	IntervalAllTime
)

// Valid reports whether the interval is one of the defined selectors.
func (i Interval) Valid() bool {
	return i >= IntervalLast7Days && i <= IntervalAllTime
}

// Start returns the inclusive lower bound of the window relative to now.
// The second return value is false for IntervalAllTime (no lower bound).
func (i Interval) Start(now time.Time) (time.Time, bool) {
	switch i {
	case IntervalLast7Days:
		return now.AddDate(0, 0, -7), true
	case IntervalLast30Days:
		return now.AddDate(0, 0, -30), true
	case IntervalLastYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}
