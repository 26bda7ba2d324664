package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/workflow"
)

// executeStage runs one enabled stage with its retry policy and returns the
// stage output. A non-nil error is either a STAGE_EXECUTION_FAILED error under
// the fail-fast strategy or the context error when the instance was cancelled.
func (e *Engine) executeStage(ctx context.Context, r *run, stage workflow.StageDefinition, input []workflow.Row) ([]workflow.Row, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanStage)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrWorkflowID, r.def.ID)
	observability.SetSpanAttribute(ctx, observability.AttrInstanceID, r.id)
	observability.SetSpanAttribute(ctx, observability.AttrStageID, stage.ID)
	observability.SetSpanAttribute(ctx, observability.AttrStageType, stage.Type)

	log := e.log.WithFields(logger.Fields(
		logger.FieldWorkflowID, r.def.ID,
		logger.FieldInstanceID, r.id,
		logger.FieldStageID, stage.ID,
		logger.FieldStageType, stage.Type,
	))

	started := e.now()
	r.startStage(stage.ID, started)

	handler, ok := e.handlers.Get(stage.Type)
	if !ok {
		log.Debug("no handler registered, passing rows through")
		handler = passThrough
	}

	ectx := workflow.NewExecutionContext(r.def.ID, r.id, stage, r.params(), r.checkpoint(stage.ID), func(v any) {
		r.saveCheckpoint(stage.ID, v)
	})

	policy := stage.Retry.Resolved()
	attempts := 0
	result, err := resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts:    policy.MaxAttempts,
		InitialBackoff: policy.Delay,
		BackoffFactor:  policy.BackoffMultiplier,
		Sleep:          e.sleep,
		RetryIf:        func(error) bool { return ctx.Err() == nil },
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			r.stage(stage.ID, func(st *workflow.StageStatus) {
				st.Errors = append(st.Errors, fmt.Sprintf("attempt %d: %v", attempt, err))
			})
			log.Warn("stage attempt failed, retrying", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
				"backoff_ms", backoff.Milliseconds(),
			))
		},
	}, func(ctx context.Context, attempt int) (*workflow.StageResult, error) {
		attempts = attempt
		ectx.Attempt = attempt
		r.stage(stage.ID, func(st *workflow.StageStatus) { st.Attempts = attempt })
		return invoke(ctx, handler, stage, input, ectx)
	})

	completed := e.now()
	elapsed := completed.Sub(started)
	observability.SetSpanAttribute(ctx, observability.AttrAttempts, attempts)

	if err == nil {
		if result == nil {
			result = &workflow.StageResult{}
		}
		r.stage(stage.ID, func(st *workflow.StageStatus) {
			st.Status = workflow.StageCompleted
			st.CompletedAt = &completed
			st.RowsRead = result.RowsRead
			st.RowsWritten = result.RowsWritten
			st.RowsRejected = result.RowsRejected
			st.RowsFiltered = result.RowsFiltered
			st.Errors = append(st.Errors, result.Errors...)
			st.LatencyMs = elapsed.Milliseconds()
			st.Throughput = throughput(result.RowsRead, st.LatencyMs)
		})
		observability.SetSpanAttribute(ctx, observability.AttrRowsRead, result.RowsRead)
		e.metrics.RecordStage(ctx, r.def.ID, stage.Type, string(workflow.StageCompleted), result.RowsRead, elapsed)
		log.Info("stage completed", logger.Fields(
			logger.FieldAttempt, attempts,
			"rows_read", result.RowsRead,
			"rows_written", result.RowsWritten,
			logger.FieldDuration, elapsed.Milliseconds(),
		))
		return result.Rows, nil
	}

	strategy := r.def.EffectiveStrategy(stage)
	cancelled := ctx.Err() != nil
	r.stage(stage.ID, func(st *workflow.StageStatus) {
		st.Status = workflow.StageFailed
		st.CompletedAt = &completed
		st.Errors = append(st.Errors, err.Error())
		st.LatencyMs = elapsed.Milliseconds()
		if !cancelled && strategy != workflow.FailFast {
			st.RowsRejected = int64(len(input))
		}
	})
	observability.SetSpanError(ctx, err)
	e.metrics.RecordStage(ctx, r.def.ID, stage.Type, string(workflow.StageFailed), 0, elapsed)
	e.metrics.RecordError(ctx, "stage", stage.Type)

	if cancelled {
		log.Warn("stage interrupted", logger.Fields(logger.FieldError, err.Error()))
		return nil, ctx.Err()
	}
	if strategy == workflow.FailFast {
		log.Error("stage failed", logger.Fields(
			logger.FieldAttempt, attempts,
			logger.FieldError, err.Error(),
		))
		return nil, errors.StageExecution(stage.ID, attempts, err)
	}
	log.Warn("stage failed, continuing", logger.Fields(
		logger.FieldAttempt, attempts,
		logger.FieldError, err.Error(),
		"strategy", string(strategy),
		"rows_rejected", len(input),
	))
	return nil, nil
}

// invoke calls the handler once, applying the stage timeout and turning a
// panic into an error.
func invoke(ctx context.Context, h workflow.StageHandler, stage workflow.StageDefinition, input []workflow.Row, ectx *workflow.ExecutionContext) (result *workflow.StageResult, err error) {
	if stage.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, stage.Timeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage handler panicked: %v", rec)
		}
	}()
	return h.Handle(ctx, stage.Config, input, ectx)
}

var passThrough = workflow.HandlerFunc(func(_ context.Context, _ map[string]any, input []workflow.Row, _ *workflow.ExecutionContext) (*workflow.StageResult, error) {
	return workflow.PassThrough(input), nil
})

// throughput is rows per second given an elapsed time in milliseconds.
func throughput(rows, elapsedMs int64) float64 {
	if elapsedMs <= 0 {
		return 0
	}
	return float64(rows) / float64(elapsedMs) * 1000
}
