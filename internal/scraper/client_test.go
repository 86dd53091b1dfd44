package scraper_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
	"github.com/reneepyh/ape-index/internal/scraper"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type pageResponse struct {
	Records    []domain.RawRecord `json:"records"`
	Page       int                `json:"page"`
	TotalPages int                `json:"total_pages"`
}

func record(hash string) domain.RawRecord {
	return domain.RawRecord{
		TransactionHash: hash,
		Timestamp:       "2024-03-01 00:00:00",
		Action:          "Sale",
		Price:           "1 ETH ($2,500.00)",
		Market:          "OpenSea",
		Buyer:           "0x1111111111111111111111111111111111111111",
		TokenID:         42,
	}
}

func newTradesServer(t *testing.T, pages map[int][]domain.RawRecord) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/trades", r.URL.Path)
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		require.NoError(t, err)

		resp := pageResponse{
			Records:    pages[page],
			Page:       page,
			TotalPages: len(pages),
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestFetchTrades_SinglePage(t *testing.T) {
	srv := newTradesServer(t, map[int][]domain.RawRecord{
		1: {record("0x1"), record("0x2")},
	})
	defer srv.Close()

	client := scraper.NewClient(
		scraper.Config{BaseURL: srv.URL},
		adapter.NewHTTPClient(5*time.Second),
	)

	records, err := client.FetchTrades(context.Background(), time.Time{})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "0x1", records[0].TransactionHash)
	assert.Equal(t, "OpenSea", records[0].Market)
}

func TestFetchTrades_ReassemblesPagesInOrder(t *testing.T) {
	srv := newTradesServer(t, map[int][]domain.RawRecord{
		1: {record("0x1")},
		2: {record("0x2")},
		3: {record("0x3")},
	})
	defer srv.Close()

	client := scraper.NewClient(
		scraper.Config{BaseURL: srv.URL, Concurrency: 2},
		adapter.NewHTTPClient(5*time.Second),
	)

	records, err := client.FetchTrades(context.Background(), time.Time{})
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "0x1", records[0].TransactionHash)
	assert.Equal(t, "0x2", records[1].TransactionHash)
	assert.Equal(t, "0x3", records[2].TransactionHash)
}

func TestFetchTrades_PassesSinceParameter(t *testing.T) {
	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	var sawSince atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSince.Store(r.URL.Query().Get("since"))
		resp := pageResponse{Records: []domain.RawRecord{record("0x1")}, Page: 1, TotalPages: 1}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := scraper.NewClient(scraper.Config{BaseURL: srv.URL}, adapter.NewHTTPClient(5*time.Second))

	_, err := client.FetchTrades(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", sawSince.Load())
}

func TestFetchTrades_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := scraper.NewClient(scraper.Config{BaseURL: srv.URL}, adapter.NewHTTPClient(5*time.Second))

	_, err := client.FetchTrades(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 1")
}

func TestFetchTrades_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		resp := pageResponse{Records: []domain.RawRecord{record("0x1")}, Page: 1, TotalPages: 1}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	client := scraper.NewClient(scraper.Config{BaseURL: srv.URL}, adapter.NewHTTPClient(5*time.Second))

	records, err := client.FetchTrades(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}
