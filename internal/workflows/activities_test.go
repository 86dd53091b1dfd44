package workflows_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/reneepyh/ape-index/internal/adapter"
	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
	"github.com/reneepyh/ape-index/internal/pipeline"
	"github.com/reneepyh/ape-index/internal/store"
	"github.com/reneepyh/ape-index/internal/store/schema"
	"github.com/reneepyh/ape-index/internal/workflows"
)

// emptySource reports no new trades.
type emptySource struct{}

func (emptySource) FetchTrades(context.Context, time.Time) ([]domain.RawRecord, error) {
	return nil, nil
}

// noopWriter satisfies store.Writer for runs that never reach persistence.
type noopWriter struct{}

func (noopWriter) GetDimensionMappings(context.Context) (*store.Mappings, error) {
	return &store.Mappings{
		Markets: map[string]int64{},
		Actions: map[string]int64{},
		Buyers:  map[string]int64{},
	}, nil
}

func (noopWriter) InsertMarkets(context.Context, []schema.Market) error        { return nil }
func (noopWriter) InsertActions(context.Context, []schema.Action) error        { return nil }
func (noopWriter) InsertAddresses(context.Context, []schema.Address) error     { return nil }
func (noopWriter) InsertTransactions(context.Context, []schema.Transaction) error {
	return nil
}

func (noopWriter) LatestTransactionTime(context.Context) (time.Time, error) {
	return time.Time{}, nil
}

func (noopWriter) TokenSaleHistory(context.Context, []int64) ([]domain.TokenSale, error) {
	return nil, nil
}

// The executor must run a real pipeline pass inside an activity context,
// where it also starts the heartbeat loop.
func TestRunPipelineActivity(t *testing.T) {
	require.NoError(t, logger.Initialize(logger.Config{Debug: true}))

	runner := pipeline.NewRunner(emptySource{}, noopWriter{}, adapter.NewClock())
	exec := workflows.NewExecutor(runner)

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(exec.RunPipeline)

	val, err := env.ExecuteActivity(exec.RunPipeline)
	require.NoError(t, err)

	var report pipeline.Report
	require.NoError(t, val.Get(&report))
	require.True(t, report.NoNewData)
	require.Equal(t, pipeline.StageDone, report.Stage)
}
