package main

import (
	"context"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/workflow"
)

// builtinHandlers are the stage types the flowkit binary ships. Other types
// pass rows through unchanged.
func builtinHandlers() *workflow.HandlerRegistry {
	r := workflow.NewHandlerRegistry()
	r.RegisterFunc("passthrough", func(_ context.Context, _ map[string]any, input []workflow.Row, _ *workflow.ExecutionContext) (*workflow.StageResult, error) {
		return workflow.PassThrough(input), nil
	})
	r.RegisterFunc("log", logRows)
	return r
}

// logRows logs the row count, and with config "sample: true" the first row,
// then passes the rows on.
func logRows(_ context.Context, cfg map[string]any, input []workflow.Row, ectx *workflow.ExecutionContext) (*workflow.StageResult, error) {
	fields := logger.Fields(
		logger.FieldWorkflowID, ectx.WorkflowID,
		logger.FieldInstanceID, ectx.InstanceID,
		logger.FieldStageID, ectx.StageID,
		"rows", len(input),
	)
	if sample, _ := cfg["sample"].(bool); sample && len(input) > 0 {
		fields["sample"] = input[0]
	}
	logger.Get("stage").Info("rows received", fields)
	return workflow.PassThrough(input), nil
}
