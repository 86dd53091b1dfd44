package logger

import (
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

// workflowFields extracts identifying fields from a workflow context so ETL
// run logs can be correlated with their Temporal execution.
func workflowFields(ctx workflow.Context) []zap.Field {
	info := workflow.GetInfo(ctx)
	if info == nil {
		return nil
	}

	return []zap.Field{
		zap.String("workflow_type", info.WorkflowType.Name),
		zap.String("workflow_id", info.WorkflowExecution.ID),
		zap.String("workflow_run_id", info.WorkflowExecution.RunID),
		zap.String("task_queue", info.TaskQueueName),
	}
}

// InfoWf logs an info message with workflow context fields
func InfoWf(ctx workflow.Context, msg string, fields ...zap.Field) {
	log.Info(msg, append(workflowFields(ctx), fields...)...)
}

// WarnWf logs a warning message with workflow context fields
func WarnWf(ctx workflow.Context, msg string, fields ...zap.Field) {
	log.Warn(msg, append(workflowFields(ctx), fields...)...)
}

// ErrorWf logs an error with workflow context fields
func ErrorWf(ctx workflow.Context, err error, fields ...zap.Field) {
	if err == nil {
		log.Error("error occurred", append(workflowFields(ctx), fields...)...)
		return
	}
	log.Error(err.Error(), append(workflowFields(ctx), fields...)...)
}
