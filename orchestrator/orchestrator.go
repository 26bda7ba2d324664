package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/kbukum/flowkit/component"
	"github.com/kbukum/flowkit/engine"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/scheduler"
	"github.com/kbukum/flowkit/workflow"
)

var (
	_ component.Component   = (*Orchestrator)(nil)
	_ component.Describable = (*Orchestrator)(nil)
	_ scheduler.JobExecutor = (*Orchestrator)(nil)
)

// PipelineResult is the job result recorded for a pipeline run.
type PipelineResult struct {
	InstanceID string                   `json:"instance_id"`
	Status     workflow.InstanceStatus  `json:"status"`
	Metrics    workflow.InstanceMetrics `json:"metrics"`
}

// Orchestrator owns the handler registry, the pipeline engine and the job
// scheduler, and runs scheduled jobs as pipeline instances.
type Orchestrator struct {
	cfg     Config
	base    *logger.Logger
	log     *logger.Logger
	metrics *observability.Metrics
	sink    EventSink

	handlers  *workflow.HandlerRegistry
	engine    *engine.Engine
	scheduler *scheduler.Scheduler

	engineOpts    []engine.Option
	schedulerOpts []scheduler.Option

	mu      sync.Mutex
	started bool
}

// New builds an orchestrator. A nil handlers registry starts empty; stage
// types without a handler pass rows through.
func New(cfg Config, handlers *workflow.HandlerRegistry, opts ...Option) *Orchestrator {
	cfg.ApplyDefaults()
	if handlers == nil {
		handlers = workflow.NewHandlerRegistry()
	}
	o := &Orchestrator{cfg: cfg, handlers: handlers}
	for _, opt := range opts {
		opt(o)
	}
	if o.base == nil {
		o.base = logger.GetGlobalLogger()
	}
	o.log = o.base.WithComponent("orchestrator")

	o.engine = engine.New(cfg.Engine, handlers, append([]engine.Option{
		engine.WithLogger(o.base.WithComponent("engine")),
		engine.WithMetrics(o.metrics),
	}, o.engineOpts...)...)

	o.scheduler = scheduler.New(cfg.Scheduler, append([]scheduler.Option{
		scheduler.WithLogger(o.base.WithComponent("scheduler")),
		scheduler.WithMetrics(o.metrics),
		scheduler.WithExecutor(o),
	}, o.schedulerOpts...)...)

	o.observe()
	return o
}

// Engine returns the pipeline engine the orchestrator owns.
func (o *Orchestrator) Engine() *engine.Engine { return o.engine }

// Scheduler returns the job scheduler. Its executor is ExecuteJob.
func (o *Orchestrator) Scheduler() *scheduler.Scheduler { return o.scheduler }

// Handlers returns the stage handler registry shared with the engine.
func (o *Orchestrator) Handlers() *workflow.HandlerRegistry { return o.handlers }

// RegisterWorkflow validates and registers a workflow definition.
func (o *Orchestrator) RegisterWorkflow(def *workflow.Definition) error {
	return o.engine.Register(def)
}

// UnregisterWorkflow removes a workflow. Workflows still referenced by a
// schedule are kept and CONFLICT is returned.
func (o *Orchestrator) UnregisterWorkflow(workflowID string) error {
	var users []string
	for _, s := range o.scheduler.List() {
		if s.WorkflowID == workflowID {
			users = append(users, s.ID)
		}
	}
	if len(users) > 0 {
		return errors.Conflict(fmt.Sprintf("workflow %q is used by schedules %s", workflowID, strings.Join(users, ", "))).
			WithDetail("schedules", users)
	}
	return o.engine.Unregister(workflowID)
}

// RegisterSchedule registers a schedule whose workflow is already known.
func (o *Orchestrator) RegisterSchedule(sched *workflow.Schedule) error {
	if sched == nil {
		return errors.InvalidInput("schedule", "must not be nil")
	}
	if _, err := o.engine.Definition(sched.WorkflowID); err != nil {
		return errors.InvalidInput("workflow_id", fmt.Sprintf("workflow %q is not registered", sched.WorkflowID))
	}
	return o.scheduler.Register(sched)
}

// LoadDefinitions reads workflow and schedule files and registers their
// content, workflows first. It stops at the first invalid entry.
func (o *Orchestrator) LoadDefinitions(paths ...string) (*workflow.Bundle, error) {
	bundle, err := workflow.Load(paths...)
	if err != nil {
		return nil, err
	}
	for _, def := range bundle.Workflows {
		if err := o.RegisterWorkflow(def); err != nil {
			return nil, fmt.Errorf("workflow %q: %w", def.ID, err)
		}
	}
	for _, sched := range bundle.Schedules {
		if err := o.RegisterSchedule(sched); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", sched.ID, err)
		}
	}
	o.log.Info("definitions loaded", logger.Fields(
		"paths", strings.Join(paths, ","),
		"workflows", len(bundle.Workflows),
		"schedules", len(bundle.Schedules),
	))
	return bundle, nil
}

// ExecuteJob runs the schedule's workflow with the schedule parameters
// overlaid by the job's, and waits for the instance. An instance that does
// not complete is an error so the scheduler's retries apply.
func (o *Orchestrator) ExecuteJob(ctx context.Context, sched *workflow.Schedule, job *workflow.Job) (any, error) {
	params := maps.Clone(sched.Parameters)
	if params == nil {
		params = make(map[string]any, len(job.Parameters))
	}
	maps.Copy(params, job.Parameters)

	h, err := o.engine.Start(ctx, sched.WorkflowID, params, triggeredBy(sched, job))
	if err != nil {
		return nil, err
	}
	job.PipelineInstanceID = h.InstanceID()

	inst, err := h.Wait(ctx)
	if err != nil {
		// The job timed out or was cancelled. Started instances outlive ctx,
		// so stop this one before the scheduler retries or moves on.
		if cerr := o.engine.Cancel(h.InstanceID()); cerr != nil && !errors.HasCode(cerr, errors.ErrCodeConflict) {
			o.log.Warn("cancel pipeline instance", logger.Fields(
				logger.FieldInstanceID, h.InstanceID(),
				logger.FieldError, cerr.Error(),
			))
		}
		return nil, errors.PipelineExecution(h.InstanceID(), err)
	}
	result := &PipelineResult{InstanceID: inst.ID, Status: inst.Status, Metrics: inst.Metrics}
	if inst.Status != workflow.InstanceCompleted {
		msg, ok := inst.FatalError()
		if !ok {
			msg = "instance " + string(inst.Status)
		}
		return result, errors.PipelineExecution(inst.ID, stderrors.New(msg))
	}
	return result, nil
}

// triggeredBy names the actor recorded on the pipeline instance. Jobs the
// scheduler fired itself are attributed to the schedule.
func triggeredBy(sched *workflow.Schedule, job *workflow.Job) string {
	switch by := job.TriggeredBy; {
	case by == "",
		by == string(workflow.TriggerCron),
		by == string(workflow.TriggerInterval),
		by == string(workflow.TriggerDependency),
		by == string(workflow.TriggerManual),
		strings.HasPrefix(by, "event:"):
		return "schedule:" + sched.ID
	default:
		return by
	}
}

// Name identifies the orchestrator in the component registry.
func (o *Orchestrator) Name() string { return "orchestrator" }

// Start starts the scheduler tick loop when the scheduler is enabled.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return nil
	}
	if o.cfg.Scheduler.Enabled {
		if err := o.scheduler.Start(ctx); err != nil {
			return err
		}
	}
	o.started = true
	return nil
}

// Stop stops the scheduler, waits for its jobs within ctx, then cancels
// instances that are still active.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started {
		return nil
	}
	o.started = false

	err := o.scheduler.Stop(ctx)
	for _, inst := range o.engine.ListInstances("") {
		if inst.Status.Terminal() {
			continue
		}
		if cerr := o.engine.Cancel(inst.ID); cerr == nil {
			o.log.Warn("instance cancelled on shutdown", logger.Fields(
				logger.FieldInstanceID, inst.ID,
				logger.FieldWorkflowID, inst.WorkflowID,
			))
		}
	}
	return err
}

// Health is unhealthy when the scheduler should be ticking and is not.
func (o *Orchestrator) Health(context.Context) component.Health {
	o.mu.Lock()
	started := o.started
	o.mu.Unlock()

	active := 0
	for _, inst := range o.engine.ListInstances("") {
		if !inst.Status.Terminal() {
			active++
		}
	}
	h := component.Health{
		Name:   o.Name(),
		Status: component.StatusHealthy,
		Details: map[string]any{
			"workflows":        len(o.engine.Definitions()),
			"schedules":        len(o.scheduler.List()),
			"active_instances": active,
			"scheduler":        o.scheduler.Running(),
		},
	}
	switch {
	case !started:
		h.Status = component.StatusUnhealthy
		h.Message = "not started"
	case o.cfg.Scheduler.Enabled && !o.scheduler.Running():
		h.Status = component.StatusUnhealthy
		h.Message = "scheduler stopped"
	}
	return h
}

// Describe summarizes the orchestrator for the startup summary.
func (o *Orchestrator) Describe() component.Description {
	sched := "scheduler off"
	if o.cfg.Scheduler.Enabled {
		sched = "tick " + o.cfg.Scheduler.TickInterval.String()
	}
	return component.Description{
		Type: "orchestrator",
		Details: fmt.Sprintf("%d workflows, %d schedules, %s, max_parallel %d",
			len(o.engine.Definitions()), len(o.scheduler.List()), sched, o.cfg.Engine.MaxParallel),
	}
}
