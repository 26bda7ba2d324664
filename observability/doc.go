// Package observability provides OpenTelemetry tracing and metrics for the
// engine and scheduler.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("flowkit"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanStage)
//	defer span.End()
//
// Metrics:
//
//	metrics, err := observability.NewMetrics(observability.Meter("flowkit"))
//	metrics.RecordStage(ctx, "etl", "extract", "completed", 120, elapsed)
//
// A nil *Metrics is valid and records nothing.
package observability
