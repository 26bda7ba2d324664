package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/flowkit/dag"
	"github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/resilience"
	"github.com/kbukum/flowkit/workflow"
)

// Engine executes registered workflow definitions.
type Engine struct {
	cfg      Config
	handlers *workflow.HandlerRegistry
	log      *logger.Logger
	metrics  *observability.Metrics
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	newID    func() string

	mu          sync.RWMutex
	definitions map[string]*workflow.Definition
	runs        map[string]*run
	retired     []string

	observers observers
}

// New creates an engine. A nil registry means every stage passes rows through.
func New(cfg Config, handlers *workflow.HandlerRegistry, opts ...Option) *Engine {
	cfg.ApplyDefaults()
	if handlers == nil {
		handlers = workflow.NewHandlerRegistry()
	}
	e := &Engine{
		cfg:         cfg,
		handlers:    handlers,
		log:         logger.Get("engine"),
		now:         time.Now,
		sleep:       resilience.SleepContext,
		newID:       uuid.NewString,
		definitions: make(map[string]*workflow.Definition),
		runs:        make(map[string]*run),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handlers returns the stage handler registry.
func (e *Engine) Handlers() *workflow.HandlerRegistry { return e.handlers }

// Register validates def and stores a copy of it, replacing any definition
// with the same id. An invalid definition yields a VALIDATION_FAILED error
// carrying the dag.Result under the "result" detail.
func (e *Engine) Register(def *workflow.Definition) error {
	if def == nil {
		return errors.InvalidInput("definition", "must not be nil")
	}
	result := dag.Validate(def)
	if !result.Valid {
		return errors.ValidationFailed(def.ID, result)
	}
	for _, w := range result.Warnings {
		e.log.Warn("workflow definition warning", logger.Fields(
			logger.FieldWorkflowID, def.ID,
			logger.FieldStageID, w.StageID,
			"code", w.Code,
			"message", w.Message,
		))
	}

	e.mu.Lock()
	e.definitions[def.ID] = def.Clone()
	e.mu.Unlock()

	e.log.Info("workflow registered", logger.Fields(
		logger.FieldWorkflowID, def.ID,
		"stages", len(def.Stages),
	))
	return nil
}

// Unregister removes a definition. Running instances are unaffected.
func (e *Engine) Unregister(workflowID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.definitions[workflowID]; !ok {
		return errors.NotFound("workflow", workflowID)
	}
	delete(e.definitions, workflowID)
	return nil
}

// Definition returns a copy of a registered definition.
func (e *Engine) Definition(workflowID string) (*workflow.Definition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.definitions[workflowID]
	if !ok {
		return nil, errors.NotFound("workflow", workflowID)
	}
	return def.Clone(), nil
}

// Definitions returns copies of all registered definitions sorted by id.
func (e *Engine) Definitions() []*workflow.Definition {
	e.mu.RLock()
	out := make([]*workflow.Definition, 0, len(e.definitions))
	for _, def := range e.definitions {
		out = append(out, def.Clone())
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResolveParameters merges caller params with the definition's declared
// defaults. Keys the definition does not declare are carried through.
func ResolveParameters(def *workflow.Definition, params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params)+len(def.Parameters))
	for k, v := range params {
		out[k] = v
	}
	for _, p := range def.Parameters {
		if _, ok := out[p.Name]; ok {
			continue
		}
		if p.Default != nil {
			out[p.Name] = p.Default
			continue
		}
		if p.Required {
			return nil, errors.MissingParameter(def.ID, p.Name)
		}
	}
	return out, nil
}

// Execute runs a workflow and blocks until the instance is terminal.
// Cancelling ctx cancels the instance. Only lookup and parameter errors are
// returned; stage failures are reported on the instance.
func (e *Engine) Execute(ctx context.Context, workflowID string, params map[string]any, triggeredBy string) (*workflow.Instance, error) {
	r, runCtx, err := e.prepare(ctx, workflowID, params, triggeredBy)
	if err != nil {
		return nil, err
	}
	go e.run(runCtx, r, triggeredBy)
	<-r.done
	return r.snapshot(), nil
}

// Start launches a workflow in the background. The instance keeps running
// after ctx is cancelled; use Cancel to stop it.
func (e *Engine) Start(ctx context.Context, workflowID string, params map[string]any, triggeredBy string) (*Handle, error) {
	r, runCtx, err := e.prepare(context.WithoutCancel(ctx), workflowID, params, triggeredBy)
	if err != nil {
		return nil, err
	}
	go e.run(runCtx, r, triggeredBy)
	return &Handle{r: r}, nil
}

func (e *Engine) prepare(ctx context.Context, workflowID string, params map[string]any, triggeredBy string) (*run, context.Context, error) {
	e.mu.RLock()
	def, ok := e.definitions[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil, nil, errors.NotFound("workflow", workflowID)
	}

	resolved, err := ResolveParameters(def, params)
	if err != nil {
		return nil, nil, err
	}
	graph, err := dag.New(def)
	if err != nil {
		return nil, nil, errors.Internal(err)
	}

	inst := &workflow.Instance{
		ID:             e.newID(),
		WorkflowID:     def.ID,
		Status:         workflow.InstanceRunning,
		StartedAt:      e.now(),
		Parameters:     resolved,
		Stages:         make(map[string]*workflow.StageStatus, len(def.Stages)),
		ExecutionOrder: []string{},
		TriggeredBy:    triggeredBy,
		Checkpoints:    make(map[string]any),
	}
	for _, s := range def.Stages {
		inst.Stages[s.ID] = &workflow.StageStatus{
			StageID: s.ID,
			Name:    s.DisplayName(),
			Status:  workflow.StagePending,
		}
	}

	r := newRun(def, graph, inst)
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	e.mu.Lock()
	e.runs[r.id] = r
	e.mu.Unlock()
	return r, runCtx, nil
}

func (e *Engine) run(ctx context.Context, r *run, triggeredBy string) {
	defer close(r.done)
	defer r.cancel()

	ctx, span := observability.StartSpan(ctx, observability.SpanPipeline)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrWorkflowID, r.def.ID)
	observability.SetSpanAttribute(ctx, observability.AttrInstanceID, r.id)

	log := e.log.WithFields(logger.Fields(
		logger.FieldWorkflowID, r.def.ID,
		logger.FieldInstanceID, r.id,
		logger.FieldTrigger, triggeredBy,
	))
	e.metrics.PipelineStarted(ctx, r.def.ID)
	log.Info("pipeline started")

	var err error
	if e.cfg.MaxParallel > 1 {
		err = e.runParallel(ctx, r)
	} else {
		err = e.runSequential(ctx, r)
	}
	e.finish(ctx, r, err, log)
}

func (e *Engine) runSequential(ctx context.Context, r *run) error {
	order, err := r.graph.TopologicalOrder()
	if err != nil {
		return err
	}
	for _, id := range order {
		if !r.awaitRunnable(ctx) {
			return context.Cause(ctx)
		}
		if err := e.runStage(ctx, r, id); err != nil {
			return err
		}
	}
	return nil
}

// runParallel dispatches ready stages onto a pool of MaxParallel workers.
// The first fail-fast error cancels the remaining stages.
func (e *Engine) runParallel(ctx context.Context, r *run) error {
	tracker := r.graph.NewTracker()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxParallel)

	var failed atomic.Bool
	finished := make(chan string, len(r.def.Stages))
	inflight := 0
	for {
		if !failed.Load() && r.awaitRunnable(gctx) {
			for _, id := range tracker.Ready() {
				inflight++
				g.Go(func() error {
					err := e.runStage(gctx, r, id)
					if err != nil {
						failed.Store(true)
					}
					finished <- id
					return err
				})
			}
		}
		if inflight == 0 {
			break
		}
		tracker.Done(<-finished)
		inflight--
	}
	return g.Wait()
}

func (e *Engine) runStage(ctx context.Context, r *run, id string) error {
	stage, _ := r.def.Stage(id)
	if !stage.IsEnabled() {
		now := e.now()
		r.mu.Lock()
		st := r.inst.Stages[id]
		st.Status = workflow.StageCompleted
		st.StartedAt = &now
		st.CompletedAt = &now
		r.inst.ExecutionOrder = append(r.inst.ExecutionOrder, id)
		r.mu.Unlock()
		r.setOutput(id, nil)
		e.log.Debug("stage disabled", logger.Fields(
			logger.FieldInstanceID, r.id,
			logger.FieldStageID, id,
		))
		return nil
	}

	rows, err := e.executeStage(ctx, r, stage, r.input(stage))
	if err != nil {
		return err
	}
	r.setOutput(id, rows)

	snap := r.snapshot()
	e.observers.stageCompleted(e.log, snap, snap.Stages[id])
	return nil
}

func (e *Engine) finish(ctx context.Context, r *run, runErr error, log *logger.Logger) {
	now := e.now()
	var failure *errors.AppError

	r.mu.Lock()
	inst := r.inst
	switch {
	case inst.Status == workflow.InstanceCancelled:
		// Cancel already stamped CompletedAt.
	case errors.HasCode(runErr, errors.ErrCodeStageExecution):
		failure = errors.PipelineExecution(inst.ID, runErr)
		var stageID string
		if cause, ok := errors.AsAppError(runErr); ok {
			stageID, _ = cause.Details["stage_id"].(string)
		}
		inst.Status = workflow.InstanceFailed
		inst.CompletedAt = &now
		inst.Errors = append(inst.Errors, workflow.InstanceError{
			StageID: stageID,
			Message: failure.Message,
			Fatal:   true,
			At:      now,
		})
	case runErr != nil || ctx.Err() != nil:
		inst.Status = workflow.InstanceCancelled
		inst.CompletedAt = &now
	default:
		inst.Status = workflow.InstanceCompleted
		inst.CompletedAt = &now
	}
	aggregate(inst)
	snap := inst.Clone()
	r.mu.Unlock()

	duration := snap.CompletedAt.Sub(snap.StartedAt)
	e.metrics.RecordPipeline(ctx, snap.WorkflowID, string(snap.Status), duration)
	observability.SetSpanAttribute(ctx, observability.AttrStatus, string(snap.Status))

	fields := logger.Fields(
		logger.FieldStatus, string(snap.Status),
		logger.FieldDuration, duration.Milliseconds(),
		"rows_read", snap.Metrics.TotalRowsRead,
	)
	switch snap.Status {
	case workflow.InstanceCompleted:
		log.Info("pipeline completed", fields)
		e.observers.pipelineCompleted(e.log, snap)
	case workflow.InstanceFailed:
		observability.SetSpanError(ctx, failure)
		e.metrics.RecordError(ctx, "pipeline", snap.WorkflowID)
		log.Error("pipeline failed", logger.MergeWithError(fields, failure))
		e.observers.pipelineFailed(e.log, snap, failure)
	default:
		log.Warn("pipeline cancelled", fields)
	}

	e.retire(r.id)
}

// aggregate sums stage counters into the instance metrics.
func aggregate(inst *workflow.Instance) {
	var m workflow.InstanceMetrics
	for _, st := range inst.Stages {
		m.TotalRowsRead += st.RowsRead
		m.TotalRowsWritten += st.RowsWritten
		m.TotalRowsRejected += st.RowsRejected
		m.TotalRowsFiltered += st.RowsFiltered
		switch st.Status {
		case workflow.StageCompleted:
			m.StagesCompleted++
		case workflow.StageFailed:
			m.StagesFailed++
		}
	}
	if inst.CompletedAt != nil {
		elapsed := inst.CompletedAt.Sub(inst.StartedAt)
		m.DurationMs = elapsed.Milliseconds()
		if secs := elapsed.Seconds(); secs > 0 {
			m.Throughput = float64(m.TotalRowsRead) / secs
		}
	}
	inst.Metrics = m
}

// retire records a terminal instance and evicts the oldest ones beyond
// HistoryLimit.
func (e *Engine) retire(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retired = append(e.retired, id)
	for len(e.retired) > e.cfg.HistoryLimit {
		delete(e.runs, e.retired[0])
		e.retired = e.retired[1:]
	}
}

func (e *Engine) lookup(instanceID string) (*run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.runs[instanceID]
	if !ok {
		return nil, errors.NotFound("instance", instanceID)
	}
	return r, nil
}

// Instance returns a snapshot of an instance.
func (e *Engine) Instance(instanceID string) (*workflow.Instance, error) {
	r, err := e.lookup(instanceID)
	if err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// ListInstances returns snapshots of retained instances, oldest first. An
// empty workflowID lists every workflow.
func (e *Engine) ListInstances(workflowID string) []*workflow.Instance {
	e.mu.RLock()
	runs := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		if workflowID == "" || r.def.ID == workflowID {
			runs = append(runs, r)
		}
	}
	e.mu.RUnlock()

	out := make([]*workflow.Instance, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pause stops a running instance before its next stage.
func (e *Engine) Pause(instanceID string) error {
	r, err := e.lookup(instanceID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inst.Status != workflow.InstanceRunning {
		return errors.Conflict(fmt.Sprintf("instance %s is %s, not running", instanceID, r.inst.Status))
	}
	r.inst.Status = workflow.InstancePaused
	e.log.Info("pipeline paused", logger.Fields(logger.FieldInstanceID, instanceID))
	return nil
}

// Resume continues a paused instance.
func (e *Engine) Resume(instanceID string) error {
	r, err := e.lookup(instanceID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if r.inst.Status != workflow.InstancePaused {
		status := r.inst.Status
		r.mu.Unlock()
		return errors.Conflict(fmt.Sprintf("instance %s is %s, not paused", instanceID, status))
	}
	r.inst.Status = workflow.InstanceRunning
	r.mu.Unlock()

	r.signal()
	e.log.Info("pipeline resumed", logger.Fields(logger.FieldInstanceID, instanceID))
	return nil
}

// Cancel stops a running or paused instance. The instance context is
// cancelled and no further stages start.
func (e *Engine) Cancel(instanceID string) error {
	r, err := e.lookup(instanceID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if r.inst.Status.Terminal() {
		status := r.inst.Status
		r.mu.Unlock()
		return errors.Conflict(fmt.Sprintf("instance %s is already %s", instanceID, status))
	}
	now := e.now()
	r.inst.Status = workflow.InstanceCancelled
	r.inst.CompletedAt = &now
	r.mu.Unlock()

	r.cancel()
	r.signal()
	e.log.Info("pipeline cancelled", logger.Fields(logger.FieldInstanceID, instanceID))
	return nil
}
