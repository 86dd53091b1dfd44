package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
)

// Config holds the scrape service client settings.
type Config struct {
	// BaseURL is the scrape service root, e.g. http://localhost:9000
	BaseURL string
	// PageSize is the number of records requested per page
	PageSize int
	// Concurrency caps simultaneous page fetches
	Concurrency int
}

// tradesPage is one page of the scrape service's trades listing.
type tradesPage struct {
	Records    []domain.RawRecord `json:"records"`
	Page       int                `json:"page"`
	TotalPages int                `json:"total_pages"`
}

// Client pages through the scrape service's trades endpoint.
type Client struct {
	cfg  Config
	http adapter.HTTPClient
}

// NewClient creates a scrape service client.
func NewClient(cfg Config, httpClient adapter.HTTPClient) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Client{cfg: cfg, http: httpClient}
}

// FetchTrades returns every raw record with a trade time at or after since.
// The first page reports the total page count; the remaining pages are
// fetched concurrently and reassembled in page order.
func (c *Client) FetchTrades(ctx context.Context, since time.Time) ([]domain.RawRecord, error) {
	first, err := c.fetchPage(ctx, since, 1)
	if err != nil {
		return nil, err
	}
	if first.TotalPages <= 1 {
		return first.Records, nil
	}

	pool := pond.NewResultPool[*tradesPage](
		c.cfg.Concurrency,
		pond.WithContext(ctx),
	)
	defer pool.StopAndWait()

	tasks := make([]pond.Result[*tradesPage], 0, first.TotalPages-1)
	for page := 2; page <= first.TotalPages; page++ {
		tasks = append(tasks, pool.SubmitErr(func() (*tradesPage, error) {
			return c.fetchPage(ctx, since, page)
		}))
	}

	records := first.Records
	for _, task := range tasks {
		page, err := task.Wait()
		if err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
	}

	logger.InfoCtx(ctx, "fetched trades from scrape service",
		zap.Int("pages", first.TotalPages),
		zap.Int("records", len(records)))

	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, since time.Time, page int) (*tradesPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(c.cfg.PageSize))
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}

	var result tradesPage
	endpoint := fmt.Sprintf("%s/trades?%s", c.cfg.BaseURL, q.Encode())
	if err := c.http.Get(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch trades page %d: %w", page, err)
	}
	return &result, nil
}
