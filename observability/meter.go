package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/flowkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the global meter provider with an OTLP HTTP exporter.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the orchestration instruments.
type Metrics struct {
	pipelineTotal    metric.Int64Counter
	pipelineDuration metric.Float64Histogram
	pipelineActive   metric.Int64UpDownCounter
	stageTotal       metric.Int64Counter
	stageDuration    metric.Float64Histogram
	stageRows        metric.Int64Counter
	stageAttempts    metric.Int64Counter
	jobTotal         metric.Int64Counter
	jobDuration      metric.Float64Histogram
	jobAttempts      metric.Int64Histogram
	errorTotal       metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.pipelineTotal, err = meter.Int64Counter("flowkit.pipeline.runs",
		metric.WithDescription("Pipeline instances by terminal status")); err != nil {
		return nil, fmt.Errorf("creating pipeline.runs counter: %w", err)
	}
	if m.pipelineDuration, err = meter.Float64Histogram("flowkit.pipeline.duration",
		metric.WithDescription("Pipeline instance duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating pipeline.duration histogram: %w", err)
	}
	if m.pipelineActive, err = meter.Int64UpDownCounter("flowkit.pipeline.active",
		metric.WithDescription("Pipeline instances currently running")); err != nil {
		return nil, fmt.Errorf("creating pipeline.active counter: %w", err)
	}
	if m.stageTotal, err = meter.Int64Counter("flowkit.stage.runs",
		metric.WithDescription("Stage executions by status")); err != nil {
		return nil, fmt.Errorf("creating stage.runs counter: %w", err)
	}
	if m.stageDuration, err = meter.Float64Histogram("flowkit.stage.duration",
		metric.WithDescription("Stage execution duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating stage.duration histogram: %w", err)
	}
	if m.stageRows, err = meter.Int64Counter("flowkit.stage.rows_read",
		metric.WithDescription("Rows read by stages")); err != nil {
		return nil, fmt.Errorf("creating stage.rows_read counter: %w", err)
	}
	if m.stageAttempts, err = meter.Int64Counter("flowkit.stage.attempts",
		metric.WithDescription("Individual handler attempts by outcome")); err != nil {
		return nil, fmt.Errorf("creating stage.attempts counter: %w", err)
	}
	if m.jobTotal, err = meter.Int64Counter("flowkit.job.runs",
		metric.WithDescription("Scheduled jobs by terminal status")); err != nil {
		return nil, fmt.Errorf("creating job.runs counter: %w", err)
	}
	if m.jobDuration, err = meter.Float64Histogram("flowkit.job.duration",
		metric.WithDescription("Job duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating job.duration histogram: %w", err)
	}
	if m.jobAttempts, err = meter.Int64Histogram("flowkit.job.attempts",
		metric.WithDescription("Attempts used per job")); err != nil {
		return nil, fmt.Errorf("creating job.attempts histogram: %w", err)
	}
	if m.errorTotal, err = meter.Int64Counter("flowkit.error.total",
		metric.WithDescription("Errors by type and component")); err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}
	return &m, nil
}

// PipelineStarted increments the active instance gauge.
func (m *Metrics) PipelineStarted(ctx context.Context, workflowID string) {
	if m == nil {
		return
	}
	m.pipelineActive.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow", workflowID)))
}

// RecordPipeline records a terminal pipeline instance and decrements the gauge.
func (m *Metrics) RecordPipeline(ctx context.Context, workflowID, status string, duration time.Duration) {
	if m == nil {
		return
	}
	wf := attribute.String("workflow", workflowID)
	m.pipelineActive.Add(ctx, -1, metric.WithAttributes(wf))
	m.pipelineTotal.Add(ctx, 1, metric.WithAttributes(wf, attribute.String("status", status)))
	m.pipelineDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(wf))
}

// RecordStage records one stage execution.
func (m *Metrics) RecordStage(ctx context.Context, workflowID, stageType, status string, rowsRead int64, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("workflow", workflowID),
		attribute.String("stage_type", stageType),
		attribute.String("status", status),
	)
	m.stageTotal.Add(ctx, 1, attrs)
	m.stageDuration.Record(ctx, duration.Seconds(), attrs)
	if rowsRead > 0 {
		m.stageRows.Add(ctx, rowsRead, attrs)
	}
}

// RecordAttempt records one handler invocation.
func (m *Metrics) RecordAttempt(ctx context.Context, workflowID, stageType, outcome string) {
	if m == nil {
		return
	}
	m.stageAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", workflowID),
		attribute.String("stage_type", stageType),
		attribute.String("outcome", outcome),
	))
}

// RecordJob records a terminal job.
func (m *Metrics) RecordJob(ctx context.Context, scheduleID, status string, attempts int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("schedule", scheduleID),
		attribute.String("status", status),
	)
	m.jobTotal.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, duration.Seconds(), attrs)
	m.jobAttempts.Record(ctx, int64(attempts), attrs)
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	if m == nil {
		return
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
