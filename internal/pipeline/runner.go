// Package pipeline drives one ETL run: fetch raw trades, clean them, resolve
// dimensions, infer sellers and commit the batch to the warehouse.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/cleaning"
	"github.com/reneepyh/ape-index/internal/dimension"
	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
	"github.com/reneepyh/ape-index/internal/ownership"
	"github.com/reneepyh/ape-index/internal/scraper"
	"github.com/reneepyh/ape-index/internal/store"
	"github.com/reneepyh/ape-index/internal/store/schema"
)

// Stage identifies where in the run the pipeline currently is. It is carried
// on the report so a failed run states how far it got.
type Stage string

const (
	// StageFetching is the raw-record fetch from the scrape service
	StageFetching Stage = "fetching"
	// StageCleaning is typing, validation and drop accounting
	StageCleaning Stage = "cleaning"
	// StageResolvingDimensions is surrogate key assignment and dimension upserts
	StageResolvingDimensions Stage = "resolving_dimensions"
	// StageInferringSellers is ownership chain reconstruction
	StageInferringSellers Stage = "inferring_sellers"
	// StagePersisting is the fact table insert
	StagePersisting Stage = "persisting"
	// StageDone means the run committed
	StageDone Stage = "done"
)

// Report summarizes one pipeline run.
type Report struct {
	// RunID uniquely identifies the run
	RunID string `json:"run_id"`
	// Stage is the last stage the run reached
	Stage Stage `json:"stage"`
	// NoNewData is true when the fetch returned nothing newer than the warehouse
	NoNewData bool `json:"no_new_data"`
	// Fetched is the raw record count returned by the scrape service
	Fetched int `json:"fetched"`
	// Dropped is the count of raw records rejected during cleaning
	Dropped int `json:"dropped"`
	// DropReasons breaks Dropped down by rejection reason
	DropReasons DropReasons `json:"drop_reasons"`
	// NewDimensions is the count of dimension rows inserted this run
	NewDimensions int `json:"new_dimensions"`
	// Persisted is the count of fact rows handed to the warehouse
	Persisted int `json:"persisted"`
	// Duration is the wall-clock run time
	Duration time.Duration `json:"duration"`
}

// DropReasons is the per-reason breakdown of records rejected during
// cleaning. Each dropped record increments exactly one counter.
type DropReasons struct {
	MissingField        int `json:"missing_field"`
	InvalidBuyer        int `json:"invalid_buyer"`
	BadTimestamp        int `json:"bad_timestamp"`
	Excluded            int `json:"excluded"`
	UnsupportedCurrency int `json:"unsupported_currency"`
	MalformedPrice      int `json:"malformed_price"`
}

// Runner executes pipeline runs against a trade source and a warehouse.
type Runner struct {
	source scraper.Source
	store  store.Writer
	clock  adapter.Clock
}

// NewRunner creates a pipeline runner.
func NewRunner(source scraper.Source, st store.Writer, clock adapter.Clock) *Runner {
	return &Runner{source: source, store: st, clock: clock}
}

// Run performs one full ETL pass. The fetch window starts at the newest
// committed trade time so consecutive runs overlap by at least one record,
// which lets seller inference bridge across runs; the fact table's hash
// constraint absorbs the overlap.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID: uuid.NewString(),
		Stage: StageFetching,
	}
	started := r.clock.Now()
	defer func() {
		report.Duration = r.clock.Since(started)
	}()

	logger.InfoCtx(ctx, "pipeline run started", zap.String("run_id", report.RunID))

	since, err := r.store.LatestTransactionTime(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to determine fetch window: %w", err)
	}

	raw, err := r.source.FetchTrades(ctx, since)
	if err != nil {
		return report, fmt.Errorf("failed to fetch trades: %w", err)
	}
	report.Fetched = len(raw)
	if len(raw) == 0 {
		report.NoNewData = true
		report.Stage = StageDone
		logger.InfoCtx(ctx, "pipeline run found no new data", zap.String("run_id", report.RunID))
		return report, nil
	}

	report.Stage = StageCleaning
	clean, stats := cleaning.Clean(raw)
	report.Dropped = stats.Dropped()
	report.DropReasons = DropReasons{
		MissingField:        stats.MissingField,
		InvalidBuyer:        stats.InvalidBuyer,
		BadTimestamp:        stats.BadTimestamp,
		Excluded:            stats.Excluded,
		UnsupportedCurrency: stats.UnsupportedCurrency,
		MalformedPrice:      stats.MalformedPrice,
	}
	logger.InfoCtx(ctx, "batch cleaned",
		zap.String("run_id", report.RunID),
		zap.Int("input", stats.Input),
		zap.Int("kept", stats.Kept),
		zap.Int("dropped", stats.Dropped()),
		zap.Int("missing_field", stats.MissingField),
		zap.Int("invalid_buyer", stats.InvalidBuyer),
		zap.Int("bad_timestamp", stats.BadTimestamp),
		zap.Int("excluded", stats.Excluded),
		zap.Int("unsupported_currency", stats.UnsupportedCurrency),
		zap.Int("malformed_price", stats.MalformedPrice))
	if len(clean) == 0 {
		report.NoNewData = true
		report.Stage = StageDone
		return report, nil
	}

	report.Stage = StageResolvingDimensions
	normalized, err := r.resolveDimensions(ctx, clean, report)
	if err != nil {
		return report, err
	}

	report.Stage = StageInferringSellers
	sellers, err := r.inferSellers(ctx, normalized)
	if err != nil {
		return report, err
	}

	report.Stage = StagePersisting
	txs := make([]schema.Transaction, 0, len(normalized))
	for _, rec := range normalized {
		txs = append(txs, schema.Transaction{
			TransactionHash: rec.TransactionHash,
			Time:            rec.Time,
			PriceUSD:        rec.PriceUSD,
			TokenID:         rec.TokenID,
			MarketID:        rec.MarketID,
			ActionID:        rec.ActionID,
			BuyerID:         rec.BuyerID,
			SellerID:        sellers[rec.TransactionHash],
		})
	}
	if err := r.store.InsertTransactions(ctx, txs); err != nil {
		return report, fmt.Errorf("failed to persist transactions: %w", err)
	}
	report.Persisted = len(txs)
	report.Stage = StageDone

	logger.InfoCtx(ctx, "pipeline run committed",
		zap.String("run_id", report.RunID),
		zap.Int("persisted", report.Persisted),
		zap.Duration("duration", r.clock.Since(started)))

	return report, nil
}

// resolveDimensions assigns surrogate keys to any dimension values the
// warehouse has not seen, commits the new rows and maps the batch onto keys.
func (r *Runner) resolveDimensions(ctx context.Context, clean []domain.CleanRecord, report *Report) ([]domain.NormalizedRecord, error) {
	mappings, err := r.store.GetDimensionMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dimension mappings: %w", err)
	}

	newMarkets, markets := dimension.Reconcile(dimension.DistinctMarkets(clean), mappings.Markets)
	newActions, actions := dimension.Reconcile(dimension.DistinctActions(clean), mappings.Actions)
	newBuyers, buyers := dimension.Reconcile(dimension.DistinctBuyers(clean), mappings.Buyers)

	marketRows := make([]schema.Market, 0, len(newMarkets))
	for _, e := range newMarkets {
		marketRows = append(marketRows, schema.Market{ID: e.ID, Name: e.Value})
	}
	if err := r.store.InsertMarkets(ctx, marketRows); err != nil {
		return nil, fmt.Errorf("failed to insert markets: %w", err)
	}

	actionRows := make([]schema.Action, 0, len(newActions))
	for _, e := range newActions {
		actionRows = append(actionRows, schema.Action{ID: e.ID, Name: e.Value})
	}
	if err := r.store.InsertActions(ctx, actionRows); err != nil {
		return nil, fmt.Errorf("failed to insert actions: %w", err)
	}

	addressRows := make([]schema.Address, 0, len(newBuyers))
	for _, e := range newBuyers {
		addressRows = append(addressRows, schema.Address{ID: e.ID, Address: e.Value})
	}
	if err := r.store.InsertAddresses(ctx, addressRows); err != nil {
		return nil, fmt.Errorf("failed to insert addresses: %w", err)
	}

	report.NewDimensions = len(newMarkets) + len(newActions) + len(newBuyers)

	normalized, err := dimension.ApplyMappings(clean, markets, actions, buyers)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// inferSellers loads the committed sale history of every token in the batch
// and rebuilds each token's ownership chain.
func (r *Runner) inferSellers(ctx context.Context, normalized []domain.NormalizedRecord) (map[string]*int64, error) {
	seen := make(map[int64]struct{})
	tokenIDs := make([]int64, 0)
	for _, rec := range normalized {
		if _, ok := seen[rec.TokenID]; !ok {
			seen[rec.TokenID] = struct{}{}
			tokenIDs = append(tokenIDs, rec.TokenID)
		}
	}

	prior, err := r.store.TokenSaleHistory(ctx, tokenIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load token sale history: %w", err)
	}

	return ownership.InferSellers(normalized, prior), nil
}
