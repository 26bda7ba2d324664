package scheduler

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/workflow"
)

// launch is a created job waiting to execute.
type launch struct {
	id       string
	sched    *workflow.Schedule
	ctx      context.Context
	cancel   context.CancelFunc
	acquired bool
	snapshot *workflow.Job
}

// newJob records a running job for sched. Callers hold s.mu.
func (s *Scheduler) newJob(ctx context.Context, sched *workflow.Schedule, params map[string]any, triggeredBy string, now time.Time, acquired bool) *launch {
	jobCtx, cancel := context.WithCancel(ctx)
	started := now
	job := &workflow.Job{
		ID:          s.newID(),
		ScheduleID:  sched.ID,
		Status:      workflow.JobRunning,
		ScheduledAt: now,
		StartedAt:   &started,
		TriggeredBy: triggeredBy,
		Parameters:  maps.Clone(params),
	}
	s.jobs[job.ID] = &jobRecord{job: job, cancel: cancel}
	s.history[sched.ID] = append(s.history[sched.ID], job.ID)
	s.prune(sched.ID)

	s.log.Info("job started", logger.Fields(
		logger.FieldScheduleID, sched.ID,
		logger.FieldJobID, job.ID,
		logger.FieldTrigger, triggeredBy,
	))
	return &launch{
		id:       job.ID,
		sched:    sched.Clone(),
		ctx:      jobCtx,
		cancel:   cancel,
		acquired: acquired,
		snapshot: job.Clone(),
	}
}

func (s *Scheduler) launchAll(launches []*launch) []*workflow.Job {
	out := make([]*workflow.Job, 0, len(launches))
	for _, l := range launches {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if l.acquired {
				defer s.bulkhead.Release()
			}
			s.execute(l)
		}()
		out = append(out, l.snapshot)
	}
	return out
}

// execute runs the job's attempts and records the outcome.
func (s *Scheduler) execute(l *launch) *workflow.Job {
	defer l.cancel()
	ctx, span := observability.StartSpan(l.ctx, observability.SpanJob)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrScheduleID, l.sched.ID)
	observability.SetSpanAttribute(ctx, observability.AttrJobID, l.id)
	observability.SetSpanAttribute(ctx, observability.AttrWorkflowID, l.sched.WorkflowID)

	log := s.log.WithFields(logger.Fields(
		logger.FieldScheduleID, l.sched.ID,
		logger.FieldJobID, l.id,
		logger.FieldWorkflowID, l.sched.WorkflowID,
	))

	s.mu.RLock()
	exec := s.executor
	s.mu.RUnlock()

	if exec == nil {
		s.updateJob(l.id, func(j *workflow.Job) { j.Attempts = 1 })
		return s.complete(ctx, l, nil, nil, 1, log)
	}

	delay := l.sched.RetryDelay
	if delay <= 0 {
		delay = workflow.DefaultJobRetryDelay
	}
	attempts := 0
	result, err := resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts:    l.sched.MaxRetries + 1,
		InitialBackoff: delay,
		BackoffFactor:  2,
		Sleep:          s.sleep,
		RetryIf:        func(error) bool { return ctx.Err() == nil },
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			log.Warn("job attempt failed, retrying", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
				"backoff_ms", backoff.Milliseconds(),
			))
		},
	}, func(ctx context.Context, attempt int) (any, error) {
		attempts = attempt
		job := s.updateJob(l.id, func(j *workflow.Job) { j.Attempts = attempt })
		res, err := s.attempt(ctx, exec, l.sched, job)
		if job.PipelineInstanceID != "" {
			s.updateJob(l.id, func(j *workflow.Job) { j.PipelineInstanceID = job.PipelineInstanceID })
		}
		return res, err
	})
	return s.complete(ctx, l, result, err, attempts, log)
}

// attempt calls the executor once under the schedule timeout.
func (s *Scheduler) attempt(ctx context.Context, exec JobExecutor, sched *workflow.Schedule, job *workflow.Job) (result any, err error) {
	if sched.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sched.Timeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job executor panicked: %v", rec)
		}
	}()
	return exec.ExecuteJob(ctx, sched, job)
}

func (s *Scheduler) complete(ctx context.Context, l *launch, result any, err error, attempts int, log *logger.Logger) *workflow.Job {
	now := s.now()
	var failure *errors.AppError

	s.mu.Lock()
	job := s.jobs[l.id].job
	switch {
	case job.Status == workflow.JobCancelled:
		// CancelJob already stamped CompletedAt.
	case err == nil:
		job.Status = workflow.JobCompleted
		job.Result = result
	case ctx.Err() != nil:
		job.Status = workflow.JobCancelled
	default:
		failure = errors.JobExecution(job.ID, attempts, err)
		job.Status = workflow.JobFailed
		job.Error = failure.Message
	}
	if job.CompletedAt == nil {
		job.CompletedAt = &now
	}
	snap := job.Clone()
	s.prune(job.ScheduleID)
	s.mu.Unlock()

	duration := snap.CompletedAt.Sub(*snap.StartedAt)
	s.metrics.RecordJob(ctx, snap.ScheduleID, string(snap.Status), snap.Attempts, duration)
	observability.SetSpanAttribute(ctx, observability.AttrStatus, string(snap.Status))
	observability.SetSpanAttribute(ctx, observability.AttrAttempts, snap.Attempts)

	fields := logger.Fields(
		logger.FieldStatus, string(snap.Status),
		logger.FieldAttempt, snap.Attempts,
		logger.FieldDuration, duration.Milliseconds(),
	)
	switch snap.Status {
	case workflow.JobCompleted:
		log.Info("job completed", fields)
		s.observers.jobCompleted(s.log, snap)
	case workflow.JobFailed:
		observability.SetSpanError(ctx, failure)
		s.metrics.RecordError(ctx, "job", snap.ScheduleID)
		log.Error("job failed", logger.MergeWithError(fields, failure))
		s.observers.jobFailed(s.log, snap, failure)
	default:
		log.Warn("job cancelled", fields)
	}
	return snap
}

// updateJob applies fn to a job under the lock and returns a snapshot.
func (s *Scheduler) updateJob(id string, fn func(j *workflow.Job)) *workflow.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return &workflow.Job{ID: id}
	}
	fn(rec.job)
	return rec.job.Clone()
}

// CancelJob cancels a running job. The executor's context is cancelled and
// the job is marked cancelled immediately.
func (s *Scheduler) CancelJob(id string) error {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return errors.NotFound("job", id)
	}
	if rec.job.Status != workflow.JobRunning {
		status := rec.job.Status
		s.mu.Unlock()
		return errors.Conflict(fmt.Sprintf("job %s is %s, not running", id, status))
	}
	now := s.now()
	rec.job.Status = workflow.JobCancelled
	rec.job.CompletedAt = &now
	s.mu.Unlock()

	rec.cancel()
	s.log.Info("job cancelled", logger.Fields(logger.FieldJobID, id))
	return nil
}

// GetJob returns a snapshot of a job.
func (s *Scheduler) GetJob(id string) (*workflow.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return nil, errors.NotFound("job", id)
	}
	return rec.job.Clone(), nil
}

// Jobs returns a schedule's retained jobs, oldest first.
func (s *Scheduler) Jobs(scheduleID string) []*workflow.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.history[scheduleID]
	out := make([]*workflow.Job, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.jobs[id].job.Clone())
	}
	return out
}

// LastJob returns the most recently created job of a schedule.
func (s *Scheduler) LastJob(scheduleID string) (*workflow.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last := s.latest(scheduleID)
	if last == nil {
		return nil, false
	}
	return last.Clone(), true
}

// latest returns the live latest job. Callers hold s.mu.
func (s *Scheduler) latest(scheduleID string) *workflow.Job {
	ids := s.history[scheduleID]
	if len(ids) == 0 {
		return nil
	}
	return s.jobs[ids[len(ids)-1]].job
}

// prune drops the oldest terminal jobs beyond HistoryLimit. The latest job is
// always kept. Callers hold s.mu.
func (s *Scheduler) prune(scheduleID string) {
	ids := s.history[scheduleID]
	for len(ids) > s.cfg.HistoryLimit {
		idx := -1
		for i, id := range ids[:len(ids)-1] {
			if s.jobs[id].job.Status.Terminal() {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		delete(s.jobs, ids[idx])
		ids = append(ids[:idx:idx], ids[idx+1:]...)
	}
	s.history[scheduleID] = ids
}
