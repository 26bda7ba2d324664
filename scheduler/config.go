package scheduler

import (
	"fmt"
	"time"
)

// Config defaults.
const (
	DefaultTickInterval = 60 * time.Second
	DefaultHistoryLimit = 100
)

// Config tunes the scheduler.
type Config struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// TickInterval is how often triggers are evaluated once started.
	TickInterval time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
	// HistoryLimit is the number of jobs kept per schedule. Only terminal
	// jobs are pruned.
	HistoryLimit int `yaml:"history_limit" mapstructure:"history_limit"`
	// MaxConcurrentJobs bounds running jobs across all schedules. Zero means
	// unlimited.
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" mapstructure:"max_concurrent_jobs"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.TickInterval < time.Second {
		return fmt.Errorf("scheduler: tick_interval must be at least 1s, got %s", c.TickInterval)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("scheduler: history_limit must be >= 1, got %d", c.HistoryLimit)
	}
	if c.MaxConcurrentJobs < 0 {
		return fmt.Errorf("scheduler: max_concurrent_jobs must not be negative")
	}
	return nil
}
