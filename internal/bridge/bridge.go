// Package bridge consumes batch events from JetStream and starts a trade
// pipeline workflow for each one.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
	"github.com/reneepyh/ape-index/internal/providers/temporal"
	"github.com/reneepyh/ape-index/internal/workflows"
)

// Config holds the configuration for the event bridge
type Config struct {
	URL               string
	StreamName        string
	ConsumerName      string
	MaxReconnects     int
	ReconnectWait     time.Duration
	ConnectionName    string
	AckWaitTimeout    time.Duration
	MaxDeliver        int
	TemporalTaskQueue string
}

// Bridge defines the interface for the event bridge
type Bridge interface {
	// Run starts the event bridge
	Run(ctx context.Context) error
	// Close closes the bridge and cleans up resources
	Close()
}

type bridge struct {
	nc           adapter.NatsConn
	js           adapter.JetStream
	orchestrator temporal.TemporalOrchestrator
	json         adapter.JSON
	config       Config
}

// NewBridge creates a new event bridge
func NewBridge(
	cfg Config,
	natsJS adapter.NatsJetStream,
	orchestrator temporal.TemporalOrchestrator,
	jsonAdapter adapter.JSON,
) (Bridge, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, js, err := natsJS.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &bridge{
		nc:           nc,
		js:           js,
		orchestrator: orchestrator,
		json:         jsonAdapter,
		config:       cfg,
	}, nil
}

// Run starts the event bridge
func (b *bridge) Run(ctx context.Context) error {
	logger.Info("starting event bridge",
		zap.String("stream", b.config.StreamName),
		zap.String("consumer", b.config.ConsumerName))

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       b.config.ConsumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.config.AckWaitTimeout,
		MaxDeliver:    b.config.MaxDeliver,
		FilterSubject: "batches.>",
	}

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.config.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	consumerInfo, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.Info("consumer created/retrieved", zap.String("consumer", consumerInfo.Name))

	msgChan := make(chan adapter.Message, 100)
	sub, err := consumer.Consume(func(msg adapter.Message) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.Info("started consuming messages")

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down event bridge")
			return ctx.Err()
		case msg := <-msgChan:
			go b.handleMessage(ctx, msg)
		}
	}
}

// handleMessage processes a single NATS message
func (b *bridge) handleMessage(ctx context.Context, msg adapter.Message) {
	metadata, _ := msg.Metadata()

	var event domain.BatchEvent
	if err := b.json.Unmarshal(msg.Data(), &event); err != nil {
		logger.Error(err, zap.String("message", "failed to unmarshal batch event"))
		// Terminate the message, the payload will never parse
		if err := msg.Term(); err != nil {
			logger.Error(err, zap.String("message", "failed to terminate message"))
		}
		return
	}

	deliveries := uint64(0)
	if metadata != nil {
		deliveries = metadata.NumDelivered
	}
	logger.Info("received batch event",
		zap.String("batch_key", event.BatchKey),
		zap.Int("record_count", event.RecordCount),
		zap.Uint64("delivery_count", deliveries),
	)

	if err := b.startPipeline(ctx, &event); err != nil {
		logger.Error(err, zap.String("message", "failed to start pipeline workflow"))
		// NAK to retry
		if err := msg.Nak(); err != nil {
			logger.Error(err, zap.String("message", "failed to NAK message"))
		}
		return
	}

	if err := msg.Ack(); err != nil {
		logger.Error(err, zap.String("message", "failed to ACK message"))
	}
}

// startPipeline starts a trade pipeline workflow for the batch
func (b *bridge) startPipeline(ctx context.Context, event *domain.BatchEvent) error {
	w := workflows.NewWorker(nil)

	opt := client.StartWorkflowOptions{
		ID:                    fmt.Sprintf("trade-pipeline-%s", event.BatchKey),
		TaskQueue:             b.config.TemporalTaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowRunTimeout:    30 * time.Minute,
	}
	_, err := b.orchestrator.ExecuteWorkflow(ctx, opt, w.RunTradePipeline, event)
	if err != nil {
		return fmt.Errorf("failed to execute workflow: %w", err)
	}

	logger.Info("batch forwarded to pipeline worker", zap.String("batch_key", event.BatchKey))

	return nil
}

// Close closes the bridge and cleans up resources
func (b *bridge) Close() {
	if b.nc == nil {
		return
	}

	b.nc.Close()
}
