package scheduler

import (
	"fmt"
	"slices"
	"sync"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/workflow"
)

type observers struct {
	mu        sync.RWMutex
	completed []func(*workflow.Job)
	failed    []func(*workflow.Job, error)
}

// OnJobCompleted registers fn to run after a job completes.
func (s *Scheduler) OnJobCompleted(fn func(job *workflow.Job)) {
	s.observers.mu.Lock()
	defer s.observers.mu.Unlock()
	s.observers.completed = append(s.observers.completed, fn)
}

// OnJobFailed registers fn to run after a job exhausts its attempts.
func (s *Scheduler) OnJobFailed(fn func(job *workflow.Job, err error)) {
	s.observers.mu.Lock()
	defer s.observers.mu.Unlock()
	s.observers.failed = append(s.observers.failed, fn)
}

func (o *observers) jobCompleted(log *logger.Logger, job *workflow.Job) {
	o.mu.RLock()
	fns := slices.Clone(o.completed)
	o.mu.RUnlock()
	for _, fn := range fns {
		notify(log, "job_completed", func() { fn(job) })
	}
}

func (o *observers) jobFailed(log *logger.Logger, job *workflow.Job, err error) {
	o.mu.RLock()
	fns := slices.Clone(o.failed)
	o.mu.RUnlock()
	for _, fn := range fns {
		notify(log, "job_failed", func() { fn(job, err) })
	}
}

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
