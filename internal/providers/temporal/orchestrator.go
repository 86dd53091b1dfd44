package temporal

import (
	"context"

	"go.temporal.io/sdk/client"
)

// TemporalOrchestrator wraps workflow start operations to enable mocking
type TemporalOrchestrator interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

type orchestrator struct {
	client client.Client
}

// NewOrchestrator wraps a Temporal client as an orchestrator
func NewOrchestrator(c client.Client) TemporalOrchestrator {
	return &orchestrator{client: c}
}

func (o *orchestrator) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	return o.client.ExecuteWorkflow(ctx, options, workflow, args...)
}
