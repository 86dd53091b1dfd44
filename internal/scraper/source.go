// Package scraper fetches raw trading-activity records from the scrape
// service that crawls the collection's marketplace activity pages.
package scraper

import (
	"context"
	"time"

	"github.com/reneepyh/ape-index/internal/domain"
)

// Source supplies raw batches to the pipeline.
type Source interface {
	// FetchTrades returns every raw record with a trade time at or after
	// since. A zero since means the full retained history.
	FetchTrades(ctx context.Context, since time.Time) ([]domain.RawRecord, error)
}
