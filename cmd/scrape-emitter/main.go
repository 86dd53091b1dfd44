package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/config"
	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
	"github.com/reneepyh/ape-index/internal/providers/jetstream"
	"github.com/reneepyh/ape-index/internal/scraper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	since      = flag.String("since", "", "Only count trades at or after this RFC3339 instant")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadScrapeEmitterConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "scrape-emitter",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting scrape emitter")

	var sinceTime time.Time
	if *since != "" {
		sinceTime, err = time.Parse(time.RFC3339, *since)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to parse since flag", zap.Error(err), zap.String("since", *since))
		}
	}

	// Initialize scrape service client
	httpClient := adapter.NewHTTPClient(cfg.Scraper.HTTPTimeout)
	source := scraper.NewClient(scraper.Config{
		BaseURL:     cfg.Scraper.BaseURL,
		PageSize:    cfg.Scraper.PageSize,
		Concurrency: cfg.Scraper.Concurrency,
	}, httpClient)

	records, err := source.FetchTrades(ctx, sinceTime)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to fetch trades", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Fetched trades", zap.Int("count", len(records)))

	if len(records) == 0 {
		logger.InfoCtx(ctx, "No new trades, nothing to publish")
		return
	}

	// Publish the batch event
	publisher, err := jetstream.NewPublisher(jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
	}, adapter.NewNatsJetStream(), adapter.NewJSON())
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create publisher", zap.Error(err))
	}
	defer publisher.Close()

	clockAdapter := adapter.NewClock()
	event := &domain.BatchEvent{
		BatchKey:    ulid.MustNewDefault(clockAdapter.Now()).String(),
		RecordCount: len(records),
		ScrapedAt:   clockAdapter.Now(),
	}

	if err := publisher.PublishBatch(ctx, event); err != nil {
		logger.FatalCtx(ctx, "Failed to publish batch event", zap.Error(err), zap.String("batch_key", event.BatchKey))
	}

	logger.InfoCtx(ctx, "Published batch event",
		zap.String("batch_key", event.BatchKey),
		zap.Int("record_count", event.RecordCount),
	)
}
