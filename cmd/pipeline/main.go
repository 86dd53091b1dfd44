package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/config"
	"github.com/reneepyh/ape-index/internal/logger"
	"github.com/reneepyh/ape-index/internal/pipeline"
	"github.com/reneepyh/ape-index/internal/scraper"
	"github.com/reneepyh/ape-index/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadPipelineConfig(*configFile, *envPath)
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
			"service": "pipeline",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting pipeline run")

	// Connect to warehouse
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	dataStore := store.NewPGStore(db)

	// Initialize scrape service client
	httpClient := adapter.NewHTTPClient(cfg.Scraper.HTTPTimeout)
	source := scraper.NewClient(scraper.Config{
		BaseURL:     cfg.Scraper.BaseURL,
		PageSize:    cfg.Scraper.PageSize,
		Concurrency: cfg.Scraper.Concurrency,
	}, httpClient)

	runner := pipeline.NewRunner(source, dataStore, adapter.NewClock())

	report, err := runner.Run(ctx)
	if err != nil {
		logger.FatalCtx(ctx, "Pipeline run failed", zap.Error(err), zap.Any("report", report))
	}

	logger.InfoCtx(ctx, "Pipeline run finished",
		zap.String("run_id", report.RunID),
		zap.Bool("no_new_data", report.NoNewData),
		zap.Int("fetched", report.Fetched),
		zap.Int("dropped", report.Dropped),
		zap.Int("new_dimensions", report.NewDimensions),
		zap.Int("persisted", report.Persisted),
		zap.Duration("duration", report.Duration),
	)
}
