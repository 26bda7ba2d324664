package engine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/workflow"
)

type observers struct {
	mu        sync.RWMutex
	completed []func(*workflow.Instance)
	failed    []func(*workflow.Instance, error)
	stage     []func(*workflow.Instance, *workflow.StageStatus)
}

// OnPipelineCompleted registers fn to run after an instance completes.
// Observers run in registration order on the instance goroutine.
func (e *Engine) OnPipelineCompleted(fn func(inst *workflow.Instance)) {
	e.observers.mu.Lock()
	defer e.observers.mu.Unlock()
	e.observers.completed = append(e.observers.completed, fn)
}

// OnPipelineFailed registers fn to run after an instance fails.
func (e *Engine) OnPipelineFailed(fn func(inst *workflow.Instance, err error)) {
	e.observers.mu.Lock()
	defer e.observers.mu.Unlock()
	e.observers.failed = append(e.observers.failed, fn)
}

// OnStageCompleted registers fn to run after each executed stage, including
// stages that failed under a non-fail-fast strategy.
func (e *Engine) OnStageCompleted(fn func(inst *workflow.Instance, stage *workflow.StageStatus)) {
	e.observers.mu.Lock()
	defer e.observers.mu.Unlock()
	e.observers.stage = append(e.observers.stage, fn)
}

func (o *observers) pipelineCompleted(log *logger.Logger, inst *workflow.Instance) {
	o.mu.RLock()
	fns := slices.Clone(o.completed)
	o.mu.RUnlock()
	for _, fn := range fns {
		notify(log, "pipeline_completed", func() { fn(inst) })
	}
}

func (o *observers) pipelineFailed(log *logger.Logger, inst *workflow.Instance, err error) {
	o.mu.RLock()
	fns := slices.Clone(o.failed)
	o.mu.RUnlock()
	for _, fn := range fns {
		notify(log, "pipeline_failed", func() { fn(inst, err) })
	}
}

func (o *observers) stageCompleted(log *logger.Logger, inst *workflow.Instance, st *workflow.StageStatus) {
	o.mu.RLock()
	fns := slices.Clone(o.stage)
	o.mu.RUnlock()
	for _, fn := range fns {
		notify(log, "stage_completed", func() { fn(inst, st) })
	}
}

// notify runs one observer, logging a panic instead of propagating it.
func notify(log *logger.Logger, event string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("observer panicked", logger.Fields(
				"event", event,
				logger.FieldError, fmt.Sprint(rec),
			))
		}
	}()
	fn()
}
