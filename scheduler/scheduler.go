package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/kbukum/flowkit/cron"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/validation"
	"github.com/kbukum/flowkit/workflow"
)

// JobExecutor runs the work behind a job. The job passed in is a copy; the
// scheduler keeps its PipelineInstanceID once the call returns.
type JobExecutor interface {
	ExecuteJob(ctx context.Context, schedule *workflow.Schedule, job *workflow.Job) (any, error)
}

// ExecutorFunc adapts a function to JobExecutor.
type ExecutorFunc func(ctx context.Context, schedule *workflow.Schedule, job *workflow.Job) (any, error)

// ExecuteJob calls f.
func (f ExecutorFunc) ExecuteJob(ctx context.Context, schedule *workflow.Schedule, job *workflow.Job) (any, error) {
	return f(ctx, schedule, job)
}

var triggerTypes = []string{
	string(workflow.TriggerCron),
	string(workflow.TriggerInterval),
	string(workflow.TriggerManual),
	string(workflow.TriggerAPI),
	string(workflow.TriggerEvent),
	string(workflow.TriggerDependency),
}

type jobRecord struct {
	job    *workflow.Job
	cancel context.CancelFunc
}

// Scheduler evaluates schedule triggers and runs jobs.
type Scheduler struct {
	cfg      Config
	log      *logger.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	newID    func() string
	crons    *cron.Cache
	bulkhead *resilience.Bulkhead

	mu        sync.RWMutex
	schedules map[string]*workflow.Schedule
	jobs      map[string]*jobRecord
	history   map[string][]string
	executor  JobExecutor

	runMu   sync.Mutex
	runner  *cronv3.Cron
	stopRun context.CancelFunc

	wg        sync.WaitGroup
	observers observers
}

// New creates a scheduler.
func New(cfg Config, opts ...Option) *Scheduler {
	cfg.ApplyDefaults()
	s := &Scheduler{
		cfg:       cfg,
		log:       logger.Get("scheduler"),
		now:       time.Now,
		sleep:     resilience.SleepContext,
		newID:     uuid.NewString,
		crons:     cron.NewCache(),
		schedules: make(map[string]*workflow.Schedule),
		jobs:      make(map[string]*jobRecord),
		history:   make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "scheduler-jobs",
		MaxConcurrent: cfg.MaxConcurrentJobs,
		OnReject: func(name string) {
			s.log.Warn("job rejected, concurrency limit reached", logger.Fields(
				"bulkhead", name,
				"max_concurrent_jobs", cfg.MaxConcurrentJobs,
			))
		},
	})
	return s
}

// SetExecutor installs the job executor. Without one, jobs complete
// immediately with a nil result.
func (s *Scheduler) SetExecutor(exec JobExecutor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executor = exec
}

// Register validates and stores a copy of sched, replacing any schedule with
// the same id. Dependencies without a condition default to "completed".
func (s *Scheduler) Register(sched *workflow.Schedule) error {
	if sched == nil {
		return errors.InvalidInput("schedule", "must not be nil")
	}
	sched = sched.Clone()
	for i := range sched.Dependencies {
		if sched.Dependencies[i].Condition == "" {
			sched.Dependencies[i].Condition = workflow.ConditionCompleted
		}
	}
	if err := s.validate(sched); err != nil {
		return err
	}

	s.mu.Lock()
	s.schedules[sched.ID] = sched
	s.mu.Unlock()

	s.log.Info("schedule registered", logger.Fields(
		logger.FieldScheduleID, sched.ID,
		logger.FieldWorkflowID, sched.WorkflowID,
		"trigger", string(sched.Trigger.Type),
		"enabled", sched.Enabled,
	))
	return nil
}

func (s *Scheduler) validate(sched *workflow.Schedule) error {
	v := validation.New().
		Required("id", sched.ID).
		Required("workflow_id", sched.WorkflowID).
		OneOf("trigger.type", string(sched.Trigger.Type), triggerTypes).
		Min("max_retries", sched.MaxRetries, 0).
		Min("max_concurrent_runs", sched.MaxConcurrentRuns, 0).
		NonNegativeDuration("timeout", sched.Timeout).
		NonNegativeDuration("retry_delay", sched.RetryDelay)

	switch sched.Trigger.Type {
	case workflow.TriggerCron:
		_, err := s.crons.Get(sched.Trigger.Cron)
		v.Check("trigger.cron", err)
	case workflow.TriggerInterval:
		v.PositiveDuration("trigger.interval", sched.Trigger.Interval)
	case workflow.TriggerEvent:
		v.Required("trigger.event", sched.Trigger.Event)
	case workflow.TriggerDependency:
		v.Custom(len(sched.Dependencies) > 0, "dependencies", "are required for a dependency trigger")
	}

	for i, dep := range sched.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", i)
		v.Required(field+".schedule_id", dep.ScheduleID).
			Custom(dep.ScheduleID != sched.ID, field+".schedule_id", "must not reference the schedule itself").
			Custom(dep.Condition.Valid(), field+".condition", "must be one of: completed, succeeded, failed, any")
	}

	_, err := sched.Location()
	v.Check("timezone", err)
	if sched.StartDate != nil && sched.EndDate != nil {
		v.Custom(!sched.EndDate.Before(*sched.StartDate), "end_date", "must not be before start_date")
	}
	return v.Validate()
}

// Unregister removes a schedule. Its job history is kept.
func (s *Scheduler) Unregister(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return errors.NotFound("schedule", id)
	}
	delete(s.schedules, id)
	return nil
}

// Enable turns a schedule's automatic triggering on.
func (s *Scheduler) Enable(id string) error { return s.setEnabled(id, true) }

// Disable turns a schedule's automatic triggering off.
func (s *Scheduler) Disable(id string) error { return s.setEnabled(id, false) }

func (s *Scheduler) setEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules[id]
	if !ok {
		return errors.NotFound("schedule", id)
	}
	sched.Enabled = enabled
	return nil
}

// Get returns a copy of a schedule.
func (s *Scheduler) Get(id string) (*workflow.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.schedules[id]
	if !ok {
		return nil, errors.NotFound("schedule", id)
	}
	return sched.Clone(), nil
}

// List returns copies of all schedules sorted by id.
func (s *Scheduler) List() []*workflow.Schedule {
	s.mu.RLock()
	out := make([]*workflow.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, sched.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// byPriority returns schedules ordered by priority, highest first, then id.
// Callers hold s.mu.
func (s *Scheduler) byPriority() []*workflow.Schedule {
	out := make([]*workflow.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, sched)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Start runs one tick immediately and then one every TickInterval until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.runner != nil {
		return errors.Conflict("scheduler is already running")
	}

	tickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	clog := cronLogger{log: s.log}
	runner := cronv3.New(
		cronv3.WithLocation(time.UTC),
		cronv3.WithLogger(clog),
		cronv3.WithChain(cronv3.Recover(clog), cronv3.SkipIfStillRunning(clog)),
	)
	spec := "@every " + s.cfg.TickInterval.String()
	if _, err := runner.AddFunc(spec, func() { s.Tick(tickCtx) }); err != nil {
		cancel()
		return errors.Internal(err)
	}

	s.Tick(tickCtx)
	runner.Start()
	s.runner = runner
	s.stopRun = cancel

	s.log.Info("scheduler started", logger.Fields(
		"tick_interval", s.cfg.TickInterval.String(),
		"schedules", len(s.List()),
	))
	return nil
}

// Stop halts ticking and waits for in-flight jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.runMu.Lock()
	runner, cancel := s.runner, s.stopRun
	s.runner, s.stopRun = nil, nil
	s.runMu.Unlock()

	if runner != nil {
		select {
		case <-runner.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped")
	return nil
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.runner != nil
}

// Wait blocks until every in-flight job has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// cronLogger routes robfig/cron log lines to the scheduler logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, logger.Fields(keysAndValues...))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	fields := logger.Fields(keysAndValues...)
	fields[logger.FieldError] = err.Error()
	l.log.Error("cron: "+msg, fields)
}
