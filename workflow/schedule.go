package workflow

import "time"

// TriggerType selects how a schedule fires.
type TriggerType string

const (
	TriggerCron       TriggerType = "cron"
	TriggerInterval   TriggerType = "interval"
	TriggerManual     TriggerType = "manual"
	TriggerAPI        TriggerType = "api"
	TriggerEvent      TriggerType = "event"
	TriggerDependency TriggerType = "dependency"
)

// Trigger configures when a schedule fires on its own.
type Trigger struct {
	Type     TriggerType   `yaml:"type" json:"type"`
	Cron     string        `yaml:"cron,omitempty" json:"cron,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	Event    string        `yaml:"event,omitempty" json:"event,omitempty"`
}

// DependencyCondition is the outcome a dependency's latest job must have.
type DependencyCondition string

const (
	// ConditionCompleted accepts a finished job regardless of outcome.
	ConditionCompleted DependencyCondition = "completed"
	// ConditionSucceeded requires the job to have completed successfully.
	ConditionSucceeded DependencyCondition = "succeeded"
	// ConditionFailed requires the job to have failed.
	ConditionFailed DependencyCondition = "failed"
	// ConditionAny always passes once the dependency has a job.
	ConditionAny DependencyCondition = "any"
)

// Satisfied reports whether a job in status s meets the condition.
func (c DependencyCondition) Satisfied(s JobStatus) bool {
	switch c {
	case ConditionCompleted:
		return s == JobCompleted || s == JobFailed
	case ConditionSucceeded:
		return s == JobCompleted
	case ConditionFailed:
		return s == JobFailed
	case ConditionAny:
		return true
	default:
		return false
	}
}

// Valid reports whether c is a known condition.
func (c DependencyCondition) Valid() bool {
	switch c {
	case ConditionCompleted, ConditionSucceeded, ConditionFailed, ConditionAny:
		return true
	}
	return false
}

// ScheduleDependency gates a schedule on another schedule's latest job.
type ScheduleDependency struct {
	ScheduleID string              `yaml:"schedule_id" json:"schedule_id"`
	Condition  DependencyCondition `yaml:"condition" json:"condition"`
}

// Schedule binds a workflow to a trigger.
type Schedule struct {
	ID                string               `yaml:"id" json:"id"`
	Name              string               `yaml:"name,omitempty" json:"name,omitempty"`
	WorkflowID        string               `yaml:"workflow_id" json:"workflow_id"`
	Trigger           Trigger              `yaml:"trigger" json:"trigger"`
	Parameters        map[string]any       `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Dependencies      []ScheduleDependency `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Timeout           time.Duration        `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries        int                  `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	// RetryDelay is the first backoff between job attempts, doubling after
	// each one. Zero means DefaultJobRetryDelay.
	RetryDelay        time.Duration        `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
	Priority          int                  `yaml:"priority,omitempty" json:"priority,omitempty"`
	Concurrent        bool                 `yaml:"concurrent,omitempty" json:"concurrent,omitempty"`
	MaxConcurrentRuns int                  `yaml:"max_concurrent_runs,omitempty" json:"max_concurrent_runs,omitempty"`
	Enabled           bool                 `yaml:"enabled" json:"enabled"`
	StartDate         *time.Time           `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate           *time.Time           `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	Timezone          string               `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// DefaultJobRetryDelay is the job backoff for a schedule whose RetryDelay is zero.
const DefaultJobRetryDelay = time.Second

// InWindow reports whether t falls inside the schedule's validity window.
func (s *Schedule) InWindow(t time.Time) bool {
	if s.StartDate != nil && t.Before(*s.StartDate) {
		return false
	}
	if s.EndDate != nil && t.After(*s.EndDate) {
		return false
	}
	return true
}

// Location resolves Timezone, defaulting to UTC.
func (s *Schedule) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Clone returns a deep copy.
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	out := *s
	out.Parameters = cloneMap(s.Parameters)
	out.Dependencies = append([]ScheduleDependency(nil), s.Dependencies...)
	if s.StartDate != nil {
		t := *s.StartDate
		out.StartDate = &t
	}
	if s.EndDate != nil {
		t := *s.EndDate
		out.EndDate = &t
	}
	return &out
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
	JobSkipped   JobStatus = "skipped"
	JobWaiting   JobStatus = "waiting"
	JobTimeout   JobStatus = "timeout"
)

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled, JobSkipped, JobTimeout:
		return true
	}
	return false
}

// Job is one firing of a schedule. Retries are attempts within the same job.
type Job struct {
	ID                 string         `json:"id"`
	ScheduleID         string         `json:"schedule_id"`
	PipelineInstanceID string         `json:"pipeline_instance_id,omitempty"`
	Status             JobStatus      `json:"status"`
	ScheduledAt        time.Time      `json:"scheduled_at"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	TriggeredBy        string         `json:"triggered_by"`
	Attempts           int            `json:"attempts"`
	Parameters         map[string]any `json:"parameters,omitempty"`
	Result             any            `json:"result,omitempty"`
	Error              string         `json:"error,omitempty"`
}

// Clone returns a copy with its own maps and timestamps.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Parameters = cloneMap(j.Parameters)
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
