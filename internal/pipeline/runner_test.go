package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
	"github.com/reneepyh/ape-index/internal/pipeline"
	"github.com/reneepyh/ape-index/internal/store"
	"github.com/reneepyh/ape-index/internal/store/schema"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
	addrC = "0x3333333333333333333333333333333333333333"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// stubSource returns a canned batch and records the requested window.
type stubSource struct {
	records []domain.RawRecord
	err     error
	since   time.Time
}

func (s *stubSource) FetchTrades(_ context.Context, since time.Time) ([]domain.RawRecord, error) {
	s.since = since
	return s.records, s.err
}

// stubStore is an in-memory store.Writer.
type stubStore struct {
	markets   []schema.Market
	actions   []schema.Action
	addresses []schema.Address
	txs       []schema.Transaction
	history   []domain.TokenSale
	latest    time.Time
}

func (s *stubStore) GetDimensionMappings(context.Context) (*store.Mappings, error) {
	m := &store.Mappings{
		Markets: make(map[string]int64),
		Actions: make(map[string]int64),
		Buyers:  make(map[string]int64),
	}
	for _, row := range s.markets {
		m.Markets[row.Name] = row.ID
	}
	for _, row := range s.actions {
		m.Actions[row.Name] = row.ID
	}
	for _, row := range s.addresses {
		m.Buyers[row.Address] = row.ID
	}
	return m, nil
}

func (s *stubStore) InsertMarkets(_ context.Context, rows []schema.Market) error {
	s.markets = append(s.markets, rows...)
	return nil
}

func (s *stubStore) InsertActions(_ context.Context, rows []schema.Action) error {
	s.actions = append(s.actions, rows...)
	return nil
}

func (s *stubStore) InsertAddresses(_ context.Context, rows []schema.Address) error {
	s.addresses = append(s.addresses, rows...)
	return nil
}

func (s *stubStore) InsertTransactions(_ context.Context, rows []schema.Transaction) error {
	s.txs = append(s.txs, rows...)
	return nil
}

func (s *stubStore) LatestTransactionTime(context.Context) (time.Time, error) {
	return s.latest, nil
}

func (s *stubStore) TokenSaleHistory(_ context.Context, tokenIDs []int64) ([]domain.TokenSale, error) {
	want := make(map[int64]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		want[id] = struct{}{}
	}
	var out []domain.TokenSale
	for _, sale := range s.history {
		if _, ok := want[sale.TokenID]; ok {
			out = append(out, sale)
		}
	}
	return out, nil
}

func raw(hash, ts, price, buyer string, tokenID int64) domain.RawRecord {
	return domain.RawRecord{
		TransactionHash: hash,
		Timestamp:       ts,
		Action:          "Sale",
		Price:           price,
		Market:          "OpenSea",
		Buyer:           buyer,
		TokenID:         tokenID,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	src := &stubSource{records: []domain.RawRecord{
		raw("0x3", "2024-03-01 02:00:00", "0.9 ETH ($180.00)", addrC, 42),
		raw("0x1", "2024-03-01 00:00:00", "0.5 ETH ($100.00)", addrA, 42),
		raw("0x2", "2024-03-01 01:00:00", "1 ETH ($200.00)", addrB, 42),
	}}
	st := &stubStore{}
	runner := pipeline.NewRunner(src, st, adapter.NewClock())

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pipeline.StageDone, report.Stage)
	assert.False(t, report.NoNewData)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 0, report.Dropped)
	assert.Equal(t, 3, report.Persisted)
	// 1 market + 1 action + 3 buyers
	assert.Equal(t, 5, report.NewDimensions)
	assert.NotEmpty(t, report.RunID)

	require.Len(t, st.txs, 3)
	byHash := make(map[string]schema.Transaction)
	for _, tx := range st.txs {
		byHash[tx.TransactionHash] = tx
	}

	// Chronological buyers A, B, C: sellers are nil, A, B.
	assert.Nil(t, byHash["0x1"].SellerID)
	require.NotNil(t, byHash["0x2"].SellerID)
	assert.Equal(t, byHash["0x1"].BuyerID, *byHash["0x2"].SellerID)
	require.NotNil(t, byHash["0x3"].SellerID)
	assert.Equal(t, byHash["0x2"].BuyerID, *byHash["0x3"].SellerID)

	assert.True(t, byHash["0x2"].PriceUSD.Sub(byHash["0x1"].PriceUSD).IsPositive())
}

func TestRun_UsesLatestCommittedTimeAsWindow(t *testing.T) {
	latest := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &stubSource{}
	st := &stubStore{latest: latest}
	runner := pipeline.NewRunner(src, st, adapter.NewClock())

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, latest, src.since)
	assert.True(t, report.NoNewData)
	assert.Equal(t, pipeline.StageDone, report.Stage)
	assert.Empty(t, st.txs)
}

func TestRun_BridgesSellerAcrossRuns(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &stubSource{records: []domain.RawRecord{
		raw("0x2", "2024-03-01 01:00:00", "1 ETH ($200.00)", addrB, 42),
	}}
	st := &stubStore{
		latest:    t0,
		addresses: []schema.Address{{ID: 1, Address: addrA}},
		markets:   []schema.Market{{ID: 1, Name: "OpenSea"}},
		actions:   []schema.Action{{ID: 1, Name: "Sale"}},
		history:   []domain.TokenSale{{TokenID: 42, Time: t0, BuyerID: 1}},
	}
	runner := pipeline.NewRunner(src, st, adapter.NewClock())

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Persisted)
	// Only the new buyer needed a dimension row.
	assert.Equal(t, 1, report.NewDimensions)

	require.Len(t, st.txs, 1)
	require.NotNil(t, st.txs[0].SellerID)
	assert.Equal(t, int64(1), *st.txs[0].SellerID)
}

func TestRun_AllRecordsDropped(t *testing.T) {
	src := &stubSource{records: []domain.RawRecord{
		raw("0x1", "2024-03-01 00:00:00", "0 ETH", addrA, 42),
		raw("0x2", "2024-03-01 01:00:00", "5 ETH", addrB, 42),
	}}
	st := &stubStore{}
	runner := pipeline.NewRunner(src, st, adapter.NewClock())

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.NoNewData)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.Dropped)
	// Zero-value ETH trades are excluded; bare ETH prices carry no USD amount.
	assert.Equal(t, 1, report.DropReasons.Excluded)
	assert.Equal(t, 1, report.DropReasons.UnsupportedCurrency)
	assert.Empty(t, st.txs)
}

func TestRun_FetchError(t *testing.T) {
	src := &stubSource{err: fmt.Errorf("scrape service unreachable")}
	st := &stubStore{}
	runner := pipeline.NewRunner(src, st, adapter.NewClock())

	report, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, pipeline.StageFetching, report.Stage)
}
