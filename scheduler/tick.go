package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/workflow"
)

// Tick evaluates every enabled schedule at the scheduler clock's current time
// and launches the jobs that are due and pass their gates. Schedules are
// visited by priority, highest first. The returned jobs are snapshots taken
// when each job was created.
func (s *Scheduler) Tick(ctx context.Context) []*workflow.Job {
	ctx, span := observability.StartSpan(ctx, observability.SpanTick)
	defer span.End()
	now := s.now()

	s.mu.Lock()
	var launches []*launch
	for _, sched := range s.byPriority() {
		if !sched.Enabled || !sched.InWindow(now) {
			continue
		}
		due, err := s.due(sched, now)
		if err != nil {
			s.log.Warn("trigger evaluation failed", logger.Fields(
				logger.FieldScheduleID, sched.ID,
				logger.FieldError, err.Error(),
			))
			continue
		}
		if !due {
			continue
		}
		if l := s.admit(ctx, sched, nil, string(sched.Trigger.Type), now); l != nil {
			launches = append(launches, l)
		}
	}
	s.mu.Unlock()

	observability.SetSpanAttribute(ctx, "flowkit.jobs_fired", len(launches))
	return s.launchAll(launches)
}

// Emit fires every enabled event schedule listening for event, subject to the
// same gates as Tick. params become the job parameters.
func (s *Scheduler) Emit(ctx context.Context, event string, params map[string]any) []*workflow.Job {
	now := s.now()

	s.mu.Lock()
	var launches []*launch
	for _, sched := range s.byPriority() {
		if sched.Trigger.Type != workflow.TriggerEvent || sched.Trigger.Event != event {
			continue
		}
		if !sched.Enabled || !sched.InWindow(now) {
			continue
		}
		if l := s.admit(ctx, sched, params, "event:"+event, now); l != nil {
			launches = append(launches, l)
		}
	}
	s.mu.Unlock()

	s.log.Debug("event emitted", logger.Fields("event", event, "jobs", len(launches)))
	return s.launchAll(launches)
}

// Trigger runs a schedule now, bypassing its trigger, gates and enabled
// flag, and blocks until the job is terminal. Cancelling ctx cancels the job.
func (s *Scheduler) Trigger(ctx context.Context, scheduleID string, params map[string]any, triggeredBy string) (*workflow.Job, error) {
	l, err := s.manual(ctx, scheduleID, params, triggeredBy)
	if err != nil {
		return nil, err
	}
	s.wg.Add(1)
	defer s.wg.Done()
	return s.execute(l), nil
}

// TriggerAsync is Trigger without waiting. It returns the job as created.
func (s *Scheduler) TriggerAsync(ctx context.Context, scheduleID string, params map[string]any, triggeredBy string) (*workflow.Job, error) {
	l, err := s.manual(context.WithoutCancel(ctx), scheduleID, params, triggeredBy)
	if err != nil {
		return nil, err
	}
	return s.launchAll([]*launch{l})[0], nil
}

func (s *Scheduler) manual(ctx context.Context, scheduleID string, params map[string]any, triggeredBy string) (*launch, error) {
	if triggeredBy == "" {
		triggeredBy = string(workflow.TriggerManual)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[scheduleID]
	if !ok {
		return nil, errors.NotFound("schedule", scheduleID)
	}
	return s.newJob(ctx, sched, params, triggeredBy, s.now(), false), nil
}

// due reports whether the schedule's own trigger fires at now. Callers hold s.mu.
func (s *Scheduler) due(sched *workflow.Schedule, now time.Time) (bool, error) {
	switch sched.Trigger.Type {
	case workflow.TriggerCron:
		spec, err := s.crons.Get(sched.Trigger.Cron)
		if err != nil {
			return false, err
		}
		loc, err := sched.Location()
		if err != nil {
			return false, err
		}
		if !spec.Matches(now.In(loc)) {
			return false, nil
		}
		// One cron firing per matching minute, however often ticks run.
		last := s.latest(sched.ID)
		if last != nil && last.TriggeredBy == string(workflow.TriggerCron) &&
			last.ScheduledAt.Truncate(time.Minute).Equal(now.Truncate(time.Minute)) {
			return false, nil
		}
		return true, nil
	case workflow.TriggerInterval:
		last := s.latest(sched.ID)
		return last == nil || now.Sub(last.ScheduledAt) >= sched.Trigger.Interval, nil
	case workflow.TriggerDependency:
		return s.upstreamFinished(sched), nil
	default:
		return false, nil
	}
}

// upstreamFinished reports whether some dependency's latest job finished
// after this schedule's latest job was scheduled.
func (s *Scheduler) upstreamFinished(sched *workflow.Schedule) bool {
	own := s.latest(sched.ID)
	for _, dep := range sched.Dependencies {
		last := s.latest(dep.ScheduleID)
		if last == nil || last.CompletedAt == nil {
			continue
		}
		if own == nil || last.CompletedAt.After(own.ScheduledAt) {
			return true
		}
	}
	return false
}

// admit applies the gates and the global bulkhead, and creates the job when
// all pass. Callers hold s.mu.
func (s *Scheduler) admit(ctx context.Context, sched *workflow.Schedule, params map[string]any, triggeredBy string, now time.Time) *launch {
	if reason, ok := s.gate(sched); !ok {
		s.log.Debug("schedule gated", logger.Fields(
			logger.FieldScheduleID, sched.ID,
			"reason", reason,
		))
		return nil
	}
	if !s.bulkhead.TryAcquire() {
		return nil
	}
	l := s.newJob(context.WithoutCancel(ctx), sched, params, triggeredBy, now, true)
	return l
}

// gate checks concurrency limits and dependency conditions. Callers hold s.mu.
func (s *Scheduler) gate(sched *workflow.Schedule) (string, bool) {
	running := 0
	for _, id := range s.history[sched.ID] {
		if s.jobs[id].job.Status == workflow.JobRunning {
			running++
		}
	}
	if !sched.Concurrent && running > 0 {
		return "a job is already running", false
	}
	if sched.MaxConcurrentRuns > 0 && running >= sched.MaxConcurrentRuns {
		return fmt.Sprintf("%d of %d runs in progress", running, sched.MaxConcurrentRuns), false
	}

	for _, dep := range sched.Dependencies {
		last := s.latest(dep.ScheduleID)
		if last == nil {
			return fmt.Sprintf("dependency %s has no job", dep.ScheduleID), false
		}
		if !dep.Condition.Satisfied(last.Status) {
			return fmt.Sprintf("dependency %s is %s, want %s", dep.ScheduleID, last.Status, dep.Condition), false
		}
	}
	return "", true
}
