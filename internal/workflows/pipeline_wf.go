package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/logger"
	"github.com/reneepyh/ape-index/internal/pipeline"
)

// RunTradePipeline runs one ETL pass for a scraped batch
func (w *worker) RunTradePipeline(ctx workflow.Context, event *domain.BatchEvent) (*pipeline.Report, error) {
	fields := []zap.Field{}
	if event != nil {
		fields = append(fields,
			zap.String("batch_key", event.BatchKey),
			zap.Int("record_count", event.RecordCount))
	}
	logger.InfoWf(ctx, "starting trade pipeline", fields...)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    3,
		},
	}
	activityCtx := workflow.WithActivityOptions(ctx, activityOptions)

	var report pipeline.Report
	err := workflow.ExecuteActivity(activityCtx, w.executor.RunPipeline).Get(ctx, &report)
	if err != nil {
		logger.ErrorWf(ctx, fmt.Errorf("trade pipeline failed: %w", err))
		return nil, err
	}

	logger.InfoWf(ctx, "trade pipeline completed",
		zap.String("run_id", report.RunID),
		zap.Bool("no_new_data", report.NoNewData),
		zap.Int("persisted", report.Persisted))

	return &report, nil
}
