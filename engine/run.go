package engine

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/kbukum/flowkit/dag"
	"github.com/kbukum/flowkit/workflow"
)

// run is the mutable state behind one instance.
type run struct {
	id    string
	def   *workflow.Definition
	graph *dag.Graph

	mu     sync.Mutex
	inst   *workflow.Instance
	cancel context.CancelFunc

	// wake is signalled on resume and cancel so a paused instance re-checks
	// its status.
	wake chan struct{}
	done chan struct{}

	outMu   sync.Mutex
	outputs map[string][]workflow.Row
}

func newRun(def *workflow.Definition, graph *dag.Graph, inst *workflow.Instance) *run {
	return &run{
		id:      inst.ID,
		def:     def,
		graph:   graph,
		inst:    inst,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		outputs: make(map[string][]workflow.Row, len(def.Stages)),
	}
}

func (r *run) snapshot() *workflow.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inst.Clone()
}

func (r *run) status() workflow.InstanceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inst.Status
}

func (r *run) stage(id string, fn func(st *workflow.StageStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.inst.Stages[id]; ok {
		fn(st)
	}
}

func (r *run) startStage(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.inst.Stages[id]
	st.Status = workflow.StageRunning
	st.StartedAt = &at
	r.inst.ExecutionOrder = append(r.inst.ExecutionOrder, id)
}

func (r *run) params() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.inst.Parameters)
}

func (r *run) checkpoint(stageID string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inst.Checkpoints[stageID]
}

func (r *run) saveCheckpoint(stageID string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inst.Checkpoints == nil {
		r.inst.Checkpoints = make(map[string]any)
	}
	r.inst.Checkpoints[stageID] = v
}

func (r *run) setOutput(stageID string, rows []workflow.Row) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	r.outputs[stageID] = rows
}

// input concatenates the outputs of the stage's dependencies in DependsOn order.
func (r *run) input(stage workflow.StageDefinition) []workflow.Row {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	var rows []workflow.Row
	for _, dep := range stage.DependsOn {
		rows = append(rows, r.outputs[dep]...)
	}
	return rows
}

func (r *run) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// awaitRunnable blocks while the instance is paused. It returns false once the
// instance is cancelled or ctx is done.
func (r *run) awaitRunnable(ctx context.Context) bool {
	for {
		switch r.status() {
		case workflow.InstanceRunning:
			return ctx.Err() == nil
		case workflow.InstancePaused:
			select {
			case <-r.wake:
			case <-ctx.Done():
				return false
			}
		default:
			return false
		}
	}
}

// Handle refers to an instance started with Engine.Start.
type Handle struct {
	r *run
}

// InstanceID returns the id of the started instance.
func (h *Handle) InstanceID() string { return h.r.id }

// Done is closed once the instance reaches a terminal status.
func (h *Handle) Done() <-chan struct{} { return h.r.done }

// Wait blocks until the instance is terminal or ctx is done, and returns a
// snapshot of the instance.
func (h *Handle) Wait(ctx context.Context) (*workflow.Instance, error) {
	select {
	case <-h.r.done:
		return h.r.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
