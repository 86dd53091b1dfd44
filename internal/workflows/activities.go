package workflows

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/reneepyh/ape-index/internal/pipeline"
)

// heartbeatInterval keeps long pipeline runs alive under the activity's
// heartbeat timeout.
const heartbeatInterval = 30 * time.Second

// Executor defines the interface for executing activities
type Executor interface {
	// RunPipeline executes one full ETL pass and returns its report
	RunPipeline(ctx context.Context) (*pipeline.Report, error)
}

// executor is the concrete implementation of Executor
type executor struct {
	runner *pipeline.Runner
}

// NewExecutor creates a new executor instance
func NewExecutor(runner *pipeline.Runner) Executor {
	return &executor{runner: runner}
}

// RunPipeline executes one full ETL pass, heartbeating while it runs
func (e *executor) RunPipeline(ctx context.Context) (*pipeline.Report, error) {
	if activity.IsActivity(ctx) {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			ticker := time.NewTicker(heartbeatInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ctx.Done():
					return
				case <-ticker.C:
					activity.RecordHeartbeat(ctx)
				}
			}
		}()
	}
	return e.runner.Run(ctx)
}
