package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/bridge"
	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

type stubConn struct{}

func (stubConn) Close()               {}
func (stubConn) LastError() error     { return nil }
func (stubConn) ConnectedUrl() string { return "nats://localhost:4222" }

type stubMessage struct {
	data   []byte
	acked  atomic.Bool
	naked  atomic.Bool
	termed atomic.Bool
}

func (m *stubMessage) Data() []byte { return m.data }
func (m *stubMessage) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: 1}, nil
}
func (m *stubMessage) Ack() error  { m.acked.Store(true); return nil }
func (m *stubMessage) Nak() error  { m.naked.Store(true); return nil }
func (m *stubMessage) Term() error { m.termed.Store(true); return nil }

type stubConsumeCtx struct{}

func (stubConsumeCtx) Stop()                   {}
func (stubConsumeCtx) Drain()                  {}
func (stubConsumeCtx) Closed() <-chan struct{} { return nil }

type stubConsumer struct {
	messages []adapter.Message
}

func (c *stubConsumer) Consume(handler adapter.MessageHandler, _ ...jetstream.PullConsumeOpt) (adapter.ConsumeContext, error) {
	for _, msg := range c.messages {
		handler(msg)
	}
	return stubConsumeCtx{}, nil
}

func (c *stubConsumer) Info(context.Context) (*jetstream.ConsumerInfo, error) {
	return &jetstream.ConsumerInfo{Name: "bridge-consumer"}, nil
}

type stubJetStream struct {
	consumer *stubConsumer
}

func (s *stubJetStream) Publish(context.Context, string, []byte, ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	return &jetstream.PubAck{}, nil
}

func (s *stubJetStream) CreateOrUpdateConsumer(context.Context, string, jetstream.ConsumerConfig) (adapter.Consumer, error) {
	return s.consumer, nil
}

func (s *stubJetStream) Consumer(context.Context, string, string) (adapter.Consumer, error) {
	return s.consumer, nil
}

type stubNatsJetStream struct {
	js         adapter.JetStream
	connectErr error
}

func (s *stubNatsJetStream) Connect(string, ...nats.Option) (adapter.NatsConn, adapter.JetStream, error) {
	if s.connectErr != nil {
		return nil, nil, s.connectErr
	}
	return stubConn{}, s.js, nil
}

// stubOrchestrator records workflow starts.
type stubOrchestrator struct {
	mu      sync.Mutex
	ids     []string
	execErr error
}

func (o *stubOrchestrator) ExecuteWorkflow(_ context.Context, options client.StartWorkflowOptions, _ interface{}, _ ...interface{}) (client.WorkflowRun, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.execErr != nil {
		return nil, o.execErr
	}
	o.ids = append(o.ids, options.ID)
	return nil, nil
}

func (o *stubOrchestrator) workflowIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.ids...)
}

func testConfig() bridge.Config {
	return bridge.Config{
		URL:               "nats://localhost:4222",
		StreamName:        "batches",
		ConsumerName:      "bridge-consumer",
		MaxReconnects:     10,
		ReconnectWait:     1 * time.Second,
		ConnectionName:    "test-bridge",
		AckWaitTimeout:    30 * time.Second,
		MaxDeliver:        3,
		TemporalTaskQueue: "trade-pipeline",
	}
}

func runBridge(t *testing.T, b bridge.Bridge) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = b.Run(ctx)
	}()
	return cancel
}

func TestNewBridge_ConnectFailure(t *testing.T) {
	natsJS := &stubNatsJetStream{connectErr: errors.New("connection refused")}

	_, err := bridge.NewBridge(testConfig(), natsJS, &stubOrchestrator{}, adapter.NewJSON())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}

func TestRun_StartsWorkflowAndAcks(t *testing.T) {
	event := domain.BatchEvent{
		BatchKey:    "01JDXAMPLEBATCHKEY0000000",
		RecordCount: 42,
		ScrapedAt:   time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	msg := &stubMessage{data: payload}
	orchestrator := &stubOrchestrator{}
	natsJS := &stubNatsJetStream{js: &stubJetStream{consumer: &stubConsumer{messages: []adapter.Message{msg}}}}

	b, err := bridge.NewBridge(testConfig(), natsJS, orchestrator, adapter.NewJSON())
	require.NoError(t, err)
	defer b.Close()

	cancel := runBridge(t, b)
	defer cancel()

	assert.Eventually(t, func() bool {
		return msg.acked.Load()
	}, 2*time.Second, 10*time.Millisecond)

	ids := orchestrator.workflowIDs()
	require.Len(t, ids, 1)
	assert.Equal(t, "trade-pipeline-01JDXAMPLEBATCHKEY0000000", ids[0])
	assert.False(t, msg.naked.Load())
	assert.False(t, msg.termed.Load())
}

func TestRun_TerminatesUnparseableMessage(t *testing.T) {
	msg := &stubMessage{data: []byte("not json")}
	orchestrator := &stubOrchestrator{}
	natsJS := &stubNatsJetStream{js: &stubJetStream{consumer: &stubConsumer{messages: []adapter.Message{msg}}}}

	b, err := bridge.NewBridge(testConfig(), natsJS, orchestrator, adapter.NewJSON())
	require.NoError(t, err)
	defer b.Close()

	cancel := runBridge(t, b)
	defer cancel()

	assert.Eventually(t, func() bool {
		return msg.termed.Load()
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, orchestrator.workflowIDs())
	assert.False(t, msg.acked.Load())
}

func TestRun_NaksOnWorkflowStartFailure(t *testing.T) {
	payload, err := json.Marshal(domain.BatchEvent{BatchKey: "01JFAILEDBATCHKEY00000000"})
	require.NoError(t, err)

	msg := &stubMessage{data: payload}
	orchestrator := &stubOrchestrator{execErr: errors.New("temporal unavailable")}
	natsJS := &stubNatsJetStream{js: &stubJetStream{consumer: &stubConsumer{messages: []adapter.Message{msg}}}}

	b, err := bridge.NewBridge(testConfig(), natsJS, orchestrator, adapter.NewJSON())
	require.NoError(t, err)
	defer b.Close()

	cancel := runBridge(t, b)
	defer cancel()

	assert.Eventually(t, func() bool {
		return msg.naked.Load()
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, msg.acked.Load())
}
