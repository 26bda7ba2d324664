package workflow

import (
	"context"
	"time"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
)

// WithTracing wraps a handler so each attempt runs inside a span.
func WithTracing(h StageHandler) StageHandler {
	return HandlerFunc(func(ctx context.Context, config map[string]any, input []Row, ectx *ExecutionContext) (*StageResult, error) {
		ctx, span := observability.StartSpan(ctx, observability.SpanStage+"."+ectx.StageType)
		defer span.End()

		observability.SetSpanAttribute(ctx, observability.AttrWorkflowID, ectx.WorkflowID)
		observability.SetSpanAttribute(ctx, observability.AttrInstanceID, ectx.InstanceID)
		observability.SetSpanAttribute(ctx, observability.AttrStageID, ectx.StageID)
		observability.SetSpanAttribute(ctx, observability.AttrAttempts, ectx.Attempt)

		result, err := h.Handle(ctx, config, input, ectx)
		if err != nil {
			observability.SetSpanError(ctx, err)
		} else if result != nil {
			observability.SetSpanAttribute(ctx, observability.AttrRowsRead, result.RowsRead)
		}
		return result, err
	})
}

// WithMetrics wraps a handler with per-attempt metric recording.
func WithMetrics(h StageHandler, metrics *observability.Metrics) StageHandler {
	return HandlerFunc(func(ctx context.Context, config map[string]any, input []Row, ectx *ExecutionContext) (*StageResult, error) {
		result, err := h.Handle(ctx, config, input, ectx)
		if err != nil {
			metrics.RecordAttempt(ctx, ectx.WorkflowID, ectx.StageType, "error")
			metrics.RecordError(ctx, "stage_attempt", ectx.StageType)
		} else {
			metrics.RecordAttempt(ctx, ectx.WorkflowID, ectx.StageType, "ok")
		}
		return result, err
	})
}

// WithLogging wraps a handler with attempt logging.
func WithLogging(h StageHandler, log *logger.Logger) StageHandler {
	return HandlerFunc(func(ctx context.Context, config map[string]any, input []Row, ectx *ExecutionContext) (*StageResult, error) {
		start := time.Now()
		result, err := h.Handle(ctx, config, input, ectx)

		fields := logger.Fields(
			logger.FieldWorkflowID, ectx.WorkflowID,
			logger.FieldInstanceID, ectx.InstanceID,
			logger.FieldStageID, ectx.StageID,
			logger.FieldAttempt, ectx.Attempt,
			logger.FieldDuration, time.Since(start).Milliseconds(),
		)
		if err != nil {
			fields[logger.FieldError] = err.Error()
			log.Warn("stage attempt failed", fields)
		} else {
			log.Debug("stage attempt completed", fields)
		}
		return result, err
	})
}

// Instrument applies logging, metrics and tracing to every handler in r.
func Instrument(r *HandlerRegistry, log *logger.Logger, metrics *observability.Metrics) {
	r.Wrap(func(_ string, h StageHandler) StageHandler {
		return WithTracing(WithMetrics(WithLogging(h, log), metrics))
	})
}
