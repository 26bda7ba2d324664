package workflow

import "time"

// ExecutionMode is a scheduling hint carried by a definition. The engine
// treats every mode as a batch run.
type ExecutionMode string

const (
	ModeBatch      ExecutionMode = "batch"
	ModeStreaming  ExecutionMode = "streaming"
	ModeMicroBatch ExecutionMode = "micro-batch"
	ModeHybrid     ExecutionMode = "hybrid"
)

// ErrorStrategy decides what a stage failure does to the rest of the run.
type ErrorStrategy string

const (
	// FailFast aborts the instance on the first failed stage.
	FailFast ErrorStrategy = "fail-fast"
	// SkipError records the failure and lets downstream stages run with no input from the stage.
	SkipError ErrorStrategy = "skip-error"
	// Continue behaves like SkipError.
	Continue ErrorStrategy = "continue"
)

// Definition is an immutable workflow: a DAG of stages plus parameters.
type Definition struct {
	ID            string                `yaml:"id" json:"id"`
	Name          string                `yaml:"name" json:"name"`
	Description   string                `yaml:"description,omitempty" json:"description,omitempty"`
	Version       string                `yaml:"version,omitempty" json:"version,omitempty"`
	Mode          ExecutionMode         `yaml:"mode,omitempty" json:"mode,omitempty" validate:"omitempty,oneof=batch streaming micro-batch hybrid"`
	Stages        []StageDefinition     `yaml:"stages" json:"stages" validate:"dive"`
	Parameters    []ParameterDefinition `yaml:"parameters,omitempty" json:"parameters,omitempty" validate:"dive"`
	ErrorHandling ErrorStrategy         `yaml:"error_handling,omitempty" json:"error_handling,omitempty" validate:"omitempty,oneof=fail-fast skip-error continue"`
	Parallelism   int                   `yaml:"parallelism,omitempty" json:"parallelism,omitempty" validate:"gte=0"`
	BatchSize     int                   `yaml:"batch_size,omitempty" json:"batch_size,omitempty" validate:"gte=0"`
	Tags          []string              `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// StageDefinition is one node of the workflow DAG.
type StageDefinition struct {
	ID            string         `yaml:"id" json:"id"`
	Name          string         `yaml:"name,omitempty" json:"name,omitempty"`
	Type          string         `yaml:"type" json:"type"`
	Config        map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
	DependsOn     []string       `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Retry         *RetryPolicy   `yaml:"retry,omitempty" json:"retry,omitempty"`
	ErrorHandling ErrorStrategy  `yaml:"error_handling,omitempty" json:"error_handling,omitempty" validate:"omitempty,oneof=fail-fast skip-error continue"`
	Enabled       *bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Timeout       time.Duration  `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"gte=0"`
}

// IsEnabled reports whether the stage runs. Stages are enabled unless
// explicitly disabled.
func (s StageDefinition) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// DisplayName returns Name, falling back to ID.
func (s StageDefinition) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// ParameterDefinition declares a workflow input.
type ParameterDefinition struct {
	Name        string `yaml:"name" json:"name" validate:"required"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// RetryPolicy configures per-stage attempts. Zero fields take the defaults
// (one attempt, 1s initial delay, multiplier 2).
type RetryPolicy struct {
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts" validate:"gte=0"`
	// Delay precedes the second attempt and grows by BackoffMultiplier.
	// Zero means DefaultRetryDelay, so there is always a pause between attempts.
	Delay             time.Duration `yaml:"delay" json:"delay" validate:"gte=0"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier" validate:"gte=0"`
}

// Default retry values.
const (
	DefaultMaxAttempts       = 1
	DefaultRetryDelay        = time.Second
	DefaultBackoffMultiplier = 2.0
)

// Resolved returns a copy with defaults applied. A nil policy resolves to the defaults.
func (p *RetryPolicy) Resolved() RetryPolicy {
	out := RetryPolicy{
		MaxAttempts:       DefaultMaxAttempts,
		Delay:             DefaultRetryDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
	if p == nil {
		return out
	}
	if p.MaxAttempts > 0 {
		out.MaxAttempts = p.MaxAttempts
	}
	if p.Delay > 0 {
		out.Delay = p.Delay
	}
	if p.BackoffMultiplier > 0 {
		out.BackoffMultiplier = p.BackoffMultiplier
	}
	return out
}

// Stage returns the stage with the given id.
func (d *Definition) Stage(id string) (StageDefinition, bool) {
	for _, s := range d.Stages {
		if s.ID == id {
			return s, true
		}
	}
	return StageDefinition{}, false
}

// EffectiveStrategy returns the stage override, the workflow policy, or FailFast.
func (d *Definition) EffectiveStrategy(stage StageDefinition) ErrorStrategy {
	if stage.ErrorHandling != "" {
		return stage.ErrorHandling
	}
	if d.ErrorHandling != "" {
		return d.ErrorHandling
	}
	return FailFast
}

// Clone returns a deep copy safe to hand to callers.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	out := *d
	out.Stages = make([]StageDefinition, len(d.Stages))
	for i, s := range d.Stages {
		cp := s
		cp.Config = cloneMap(s.Config)
		cp.DependsOn = append([]string(nil), s.DependsOn...)
		if s.Retry != nil {
			r := *s.Retry
			cp.Retry = &r
		}
		if s.Enabled != nil {
			e := *s.Enabled
			cp.Enabled = &e
		}
		out.Stages[i] = cp
	}
	out.Parameters = append([]ParameterDefinition(nil), d.Parameters...)
	out.Tags = append([]string(nil), d.Tags...)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
