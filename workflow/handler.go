package workflow

import "context"

// Row is one record flowing between stages.
type Row map[string]any

// StageResult is what a handler returns for one stage.
type StageResult struct {
	Rows         []Row    `json:"rows"`
	RowsRead     int64    `json:"rows_read"`
	RowsWritten  int64    `json:"rows_written"`
	RowsRejected int64    `json:"rows_rejected"`
	RowsFiltered int64    `json:"rows_filtered"`
	// Errors are non-fatal problems reported by the handler.
	Errors []string `json:"errors,omitempty"`
}

// ExecutionContext is handed to a stage handler on every attempt.
type ExecutionContext struct {
	WorkflowID string
	InstanceID string
	StageID    string
	StageName  string
	StageType  string
	Attempt    int
	Parameters map[string]any
	// Metadata is scratch space private to this stage execution.
	Metadata map[string]any
	// Checkpoint is the last checkpoint saved for this stage, if any.
	Checkpoint any

	saveCheckpoint func(any)
}

// NewExecutionContext builds a context. save receives checkpoints passed to
// SaveCheckpoint and may be nil.
func NewExecutionContext(workflowID, instanceID string, stage StageDefinition, params map[string]any, checkpoint any, save func(any)) *ExecutionContext {
	return &ExecutionContext{
		WorkflowID:     workflowID,
		InstanceID:     instanceID,
		StageID:        stage.ID,
		StageName:      stage.DisplayName(),
		StageType:      stage.Type,
		Parameters:     params,
		Metadata:       make(map[string]any),
		Checkpoint:     checkpoint,
		saveCheckpoint: save,
	}
}

// SaveCheckpoint records v as the stage's latest checkpoint.
func (c *ExecutionContext) SaveCheckpoint(v any) {
	c.Checkpoint = v
	if c.saveCheckpoint != nil {
		c.saveCheckpoint(v)
	}
}

// StageHandler executes stages of one type. Handlers should honor ctx
// cancellation; the engine cancels ctx when the instance is cancelled or the
// stage timeout elapses.
type StageHandler interface {
	Handle(ctx context.Context, config map[string]any, input []Row, ectx *ExecutionContext) (*StageResult, error)
}

// HandlerFunc adapts a function to StageHandler.
type HandlerFunc func(ctx context.Context, config map[string]any, input []Row, ectx *ExecutionContext) (*StageResult, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, config map[string]any, input []Row, ectx *ExecutionContext) (*StageResult, error) {
	return f(ctx, config, input, ectx)
}

// PassThrough returns input unchanged. The engine uses it for stage types with
// no registered handler.
func PassThrough(input []Row) *StageResult {
	n := int64(len(input))
	return &StageResult{Rows: input, RowsRead: n, RowsWritten: n}
}
