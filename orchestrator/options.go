package orchestrator

import (
	"github.com/kbukum/flowkit/engine"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/scheduler"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the base logger. The orchestrator, engine and scheduler
// each log through it with their own component field.
func WithLogger(log *logger.Logger) Option {
	return func(o *Orchestrator) { o.base = log }
}

// WithMetrics records engine and scheduler metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithEventSink publishes lifecycle events to sink.
func WithEventSink(sink EventSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithEngineOptions passes options through to engine.New, after the
// orchestrator's own.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *Orchestrator) { o.engineOpts = append(o.engineOpts, opts...) }
}

// WithSchedulerOptions passes options through to scheduler.New, after the
// orchestrator's own.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(o *Orchestrator) { o.schedulerOpts = append(o.schedulerOpts, opts...) }
}
