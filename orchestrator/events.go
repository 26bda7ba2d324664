package orchestrator

import (
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/workflow"
)

// Lifecycle event types.
const (
	EventPipelineCompleted = "pipeline.completed"
	EventPipelineFailed    = "pipeline.failed"
	EventStageCompleted    = "stage.completed"
	EventJobCompleted      = "job.completed"
	EventJobFailed         = "job.failed"
)

// EventSink receives lifecycle events. *sse.Hub implements it.
type EventSink interface {
	Publish(e sse.Event) error
}

// PipelineTopic is the topic of events about workflowID's instances.
func PipelineTopic(workflowID string) string { return "pipeline:" + workflowID }

// JobTopic is the topic of events about scheduleID's jobs.
func JobTopic(scheduleID string) string { return "job:" + scheduleID }

// PipelineEvent is the payload of pipeline.* events.
type PipelineEvent struct {
	InstanceID  string                   `json:"instance_id"`
	WorkflowID  string                   `json:"workflow_id"`
	Status      workflow.InstanceStatus  `json:"status"`
	TriggeredBy string                   `json:"triggered_by,omitempty"`
	Metrics     workflow.InstanceMetrics `json:"metrics"`
	Error       string                   `json:"error,omitempty"`
}

// StageEvent is the payload of stage.completed.
type StageEvent struct {
	InstanceID  string              `json:"instance_id"`
	WorkflowID  string              `json:"workflow_id"`
	StageID     string              `json:"stage_id"`
	Status      workflow.StageState `json:"status"`
	Attempts    int                 `json:"attempts"`
	RowsRead    int64               `json:"rows_read"`
	RowsWritten int64               `json:"rows_written"`
	LatencyMs   int64               `json:"latency_ms"`
}

// JobEvent is the payload of job.* events.
type JobEvent struct {
	JobID              string             `json:"job_id"`
	ScheduleID         string             `json:"schedule_id"`
	PipelineInstanceID string             `json:"pipeline_instance_id,omitempty"`
	Status             workflow.JobStatus `json:"status"`
	Attempts           int                `json:"attempts"`
	TriggeredBy        string             `json:"triggered_by,omitempty"`
	Error              string             `json:"error,omitempty"`
}

// observe subscribes the event sink to engine and scheduler outcomes.
func (o *Orchestrator) observe() {
	o.engine.OnPipelineCompleted(func(inst *workflow.Instance) {
		o.publish(EventPipelineCompleted, PipelineTopic(inst.WorkflowID), pipelineEvent(inst, nil))
	})
	o.engine.OnPipelineFailed(func(inst *workflow.Instance, err error) {
		o.publish(EventPipelineFailed, PipelineTopic(inst.WorkflowID), pipelineEvent(inst, err))
	})
	o.engine.OnStageCompleted(func(inst *workflow.Instance, st *workflow.StageStatus) {
		o.publish(EventStageCompleted, PipelineTopic(inst.WorkflowID), StageEvent{
			InstanceID:  inst.ID,
			WorkflowID:  inst.WorkflowID,
			StageID:     st.StageID,
			Status:      st.Status,
			Attempts:    st.Attempts,
			RowsRead:    st.RowsRead,
			RowsWritten: st.RowsWritten,
			LatencyMs:   st.LatencyMs,
		})
	})
	o.scheduler.OnJobCompleted(func(job *workflow.Job) {
		o.publish(EventJobCompleted, JobTopic(job.ScheduleID), jobEvent(job, nil))
	})
	o.scheduler.OnJobFailed(func(job *workflow.Job, err error) {
		o.publish(EventJobFailed, JobTopic(job.ScheduleID), jobEvent(job, err))
	})
}

func (o *Orchestrator) publish(eventType, topic string, data any) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Publish(sse.Event{Type: eventType, Topic: topic, Data: data}); err != nil {
		o.log.Warn("lifecycle event dropped", logger.Fields(
			"event", eventType,
			"topic", topic,
			logger.FieldError, err.Error(),
		))
	}
}

func pipelineEvent(inst *workflow.Instance, err error) PipelineEvent {
	e := PipelineEvent{
		InstanceID:  inst.ID,
		WorkflowID:  inst.WorkflowID,
		Status:      inst.Status,
		TriggeredBy: inst.TriggeredBy,
		Metrics:     inst.Metrics,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

func jobEvent(job *workflow.Job, err error) JobEvent {
	e := JobEvent{
		JobID:              job.ID,
		ScheduleID:         job.ScheduleID,
		PipelineInstanceID: job.PipelineInstanceID,
		Status:             job.Status,
		Attempts:           job.Attempts,
		TriggeredBy:        job.TriggeredBy,
		Error:              job.Error,
	}
	if err != nil && e.Error == "" {
		e.Error = err.Error()
	}
	return e
}
