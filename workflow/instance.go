package workflow

import "time"

// InstanceStatus is the lifecycle state of a pipeline instance.
type InstanceStatus string

const (
	InstanceRunning   InstanceStatus = "running"
	InstancePaused    InstanceStatus = "paused"
	InstanceCompleted InstanceStatus = "completed"
	InstanceFailed    InstanceStatus = "failed"
	InstanceCancelled InstanceStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceCompleted || s == InstanceFailed || s == InstanceCancelled
}

// StageState is the lifecycle state of one stage within an instance.
type StageState string

const (
	StagePending   StageState = "pending"
	StageRunning   StageState = "running"
	StageCompleted StageState = "completed"
	StageFailed    StageState = "failed"
	StageSkipped   StageState = "skipped"
)

// Terminal reports whether the stage has finished.
func (s StageState) Terminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageSkipped
}

// StageStatus tracks one stage of an instance.
type StageStatus struct {
	StageID      string     `json:"stage_id"`
	Name         string     `json:"name"`
	Status       StageState `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	RowsRead     int64      `json:"rows_read"`
	RowsWritten  int64      `json:"rows_written"`
	RowsRejected int64      `json:"rows_rejected"`
	RowsFiltered int64      `json:"rows_filtered"`
	Attempts     int        `json:"attempts"`
	Errors       []string   `json:"errors,omitempty"`
	// Throughput is rows read per second.
	Throughput float64 `json:"throughput"`
	LatencyMs  int64   `json:"latency_ms"`
}

// InstanceMetrics aggregates stage counters.
type InstanceMetrics struct {
	TotalRowsRead     int64 `json:"total_rows_read"`
	TotalRowsWritten  int64 `json:"total_rows_written"`
	TotalRowsRejected int64 `json:"total_rows_rejected"`
	TotalRowsFiltered int64 `json:"total_rows_filtered"`
	DurationMs        int64 `json:"duration_ms"`
	// Throughput is rows read per second over the instance duration.
	Throughput      float64 `json:"throughput"`
	StagesCompleted int     `json:"stages_completed"`
	StagesFailed    int     `json:"stages_failed"`
}

// InstanceError is an error recorded against an instance.
type InstanceError struct {
	StageID string    `json:"stage_id,omitempty"`
	Message string    `json:"message"`
	Fatal   bool      `json:"fatal"`
	At      time.Time `json:"at"`
}

// Instance is one execution of a workflow.
type Instance struct {
	ID             string                  `json:"id"`
	WorkflowID     string                  `json:"workflow_id"`
	Status         InstanceStatus          `json:"status"`
	StartedAt      time.Time               `json:"started_at"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
	Parameters     map[string]any          `json:"parameters"`
	Stages         map[string]*StageStatus `json:"stages"`
	ExecutionOrder []string                `json:"execution_order"`
	Metrics        InstanceMetrics         `json:"metrics"`
	Errors         []InstanceError         `json:"errors,omitempty"`
	TriggeredBy    string                  `json:"triggered_by,omitempty"`
	Checkpoints    map[string]any          `json:"checkpoints,omitempty"`
}

// Clone returns a deep copy.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	out := *i
	out.Parameters = cloneMap(i.Parameters)
	out.Checkpoints = cloneMap(i.Checkpoints)
	out.ExecutionOrder = append([]string(nil), i.ExecutionOrder...)
	out.Errors = append([]InstanceError(nil), i.Errors...)
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		out.CompletedAt = &t
	}
	out.Stages = make(map[string]*StageStatus, len(i.Stages))
	for id, st := range i.Stages {
		cp := *st
		cp.Errors = append([]string(nil), st.Errors...)
		if st.StartedAt != nil {
			t := *st.StartedAt
			cp.StartedAt = &t
		}
		if st.CompletedAt != nil {
			t := *st.CompletedAt
			cp.CompletedAt = &t
		}
		out.Stages[id] = &cp
	}
	return &out
}

// FatalError returns the message of the first fatal error, if any.
func (i *Instance) FatalError() (string, bool) {
	for _, e := range i.Errors {
		if e.Fatal {
			return e.Message, true
		}
	}
	return "", false
}
