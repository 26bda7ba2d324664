package engine

import "fmt"

// Config defaults.
const (
	DefaultMaxParallel  = 1
	DefaultHistoryLimit = 500
)

// Config tunes the pipeline engine.
type Config struct {
	// MaxParallel bounds concurrently running stages of one instance.
	// Values <= 1 run stages sequentially in topological order.
	MaxParallel int `yaml:"max_parallel" mapstructure:"max_parallel"`
	// HistoryLimit is the number of terminal instances kept in memory.
	HistoryLimit int `yaml:"history_limit" mapstructure:"history_limit"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.MaxParallel <= 0 {
		c.MaxParallel = DefaultMaxParallel
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxParallel < 1 {
		return fmt.Errorf("engine: max_parallel must be >= 1, got %d", c.MaxParallel)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("engine: history_limit must be >= 1, got %d", c.HistoryLimit)
	}
	return nil
}
