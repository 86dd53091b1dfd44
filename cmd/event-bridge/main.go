package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/bridge"
	"github.com/reneepyh/ape-index/internal/config"
	"github.com/reneepyh/ape-index/internal/logger"
	temporalprovider "github.com/reneepyh/ape-index/internal/providers/temporal"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadEventBridgeConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "event-bridge",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.Info("Starting event bridge")

	// Connect to Temporal (for triggering workflows remotely)
	temporalLogger := temporalprovider.NewZapLoggerAdapter(logger.Default())
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporalLogger,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.Error(err), zap.String("host_port", cfg.Temporal.HostPort))
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", zap.String("namespace", cfg.Temporal.Namespace))

	orchestrator := temporalprovider.NewOrchestrator(temporalClient)

	// Create bridge
	eventBridge, err := bridge.NewBridge(
		bridge.Config{
			URL:               cfg.NATS.URL,
			StreamName:        cfg.NATS.StreamName,
			ConsumerName:      cfg.NATS.ConsumerName,
			MaxReconnects:     cfg.NATS.MaxReconnects,
			ReconnectWait:     cfg.NATS.ReconnectWait,
			ConnectionName:    cfg.NATS.ConnectionName,
			AckWaitTimeout:    cfg.NATS.AckWait,
			MaxDeliver:        cfg.NATS.MaxDeliver,
			TemporalTaskQueue: cfg.Temporal.PipelineTaskQueue,
		},
		adapter.NewNatsJetStream(),
		orchestrator,
		adapter.NewJSON(),
	)
	if err != nil {
		logger.Fatal("Failed to create event bridge", zap.Error(err))
	}
	defer eventBridge.Close()
	logger.Info("Event bridge created", zap.String("stream", cfg.NATS.StreamName), zap.String("consumer", cfg.NATS.ConsumerName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)

	// Start the bridge
	go func() {
		if err := eventBridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.Error(err, zap.String("component", "bridge"))
		cancel()
	}

	// Give some time for graceful shutdown
	time.Sleep(time.Second)

	logger.Info("Event bridge stopped")
}
