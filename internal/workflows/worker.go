package workflows

import (
	"go.temporal.io/sdk/workflow"

	"github.com/reneepyh/ape-index/internal/domain"
	"github.com/reneepyh/ape-index/internal/pipeline"
)

// Worker defines the interface for processing batch events
type Worker interface {
	// RunTradePipeline runs one ETL pass for a scraped batch. A nil event
	// means a scheduled run not tied to a specific batch.
	RunTradePipeline(ctx workflow.Context, event *domain.BatchEvent) (*pipeline.Report, error)
}

// worker is the concrete implementation of Worker
type worker struct {
	executor Executor
}

// NewWorker creates a new worker instance
func NewWorker(executor Executor) Worker {
	return &worker{executor: executor}
}
