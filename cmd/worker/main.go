package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/config"
	"github.com/reneepyh/ape-index/internal/logger"
	"github.com/reneepyh/ape-index/internal/pipeline"
	temporalprovider "github.com/reneepyh/ape-index/internal/providers/temporal"
	"github.com/reneepyh/ape-index/internal/scraper"
	"github.com/reneepyh/ape-index/internal/store"
	"github.com/reneepyh/ape-index/internal/workflows"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadWorkerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "worker",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting pipeline worker")

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
	executor := workflows.NewExecutor(runner)

	// Connect to Temporal with logger integration
	temporalLogger := temporalprovider.NewZapLoggerAdapter(logger.Default())
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporalLogger,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to Temporal", zap.Error(err), zap.String("host_port", cfg.Temporal.HostPort))
	}
	defer temporalClient.Close()
	logger.InfoCtx(ctx, "Connected to Temporal", zap.String("namespace", cfg.Temporal.Namespace))

	// Create Temporal worker
	temporalWorker := worker.New(
		temporalClient,
		cfg.Temporal.PipelineTaskQueue,
		worker.Options{
			MaxConcurrentActivityExecutionSize: cfg.Temporal.MaxConcurrentActivityExecutionSize,
			WorkerActivitiesPerSecond:          cfg.Temporal.WorkerActivitiesPerSecond,
			MaxConcurrentActivityTaskPollers:   cfg.Temporal.MaxConcurrentActivityTaskPollers,
		})
	logger.InfoCtx(ctx, "Created Temporal worker", zap.String("task_queue", cfg.Temporal.PipelineTaskQueue))

	pipelineWorker := workflows.NewWorker(executor)

	// Register workflows and activities
	temporalWorker.RegisterWorkflow(pipelineWorker.RunTradePipeline)
	temporalWorker.RegisterActivity(executor.RunPipeline)
	logger.InfoCtx(ctx, "Registered workflows and activities")

	// Start worker
	err = temporalWorker.Start()
	if err != nil {
		logger.FatalCtx(ctx, "Failed to start worker", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Worker started and listening for tasks")

	// Keep a cron-scheduled run alive alongside event-driven ones
	if cfg.Temporal.CronSchedule != "" {
		_, err = temporalClient.ExecuteWorkflow(ctx,
			client.StartWorkflowOptions{
				ID:           "trade-pipeline-cron",
				TaskQueue:    cfg.Temporal.PipelineTaskQueue,
				CronSchedule: cfg.Temporal.CronSchedule,
			},
			pipelineWorker.RunTradePipeline,
			nil,
		)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to start cron workflow", zap.Error(err), zap.String("cron", cfg.Temporal.CronSchedule))
		} else {
			logger.InfoCtx(ctx, "Cron workflow scheduled", zap.String("cron", cfg.Temporal.CronSchedule))
		}
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.InfoCtx(ctx, "Shutting down worker...")
	temporalWorker.Stop()
	logger.Info("Worker stopped")
}
