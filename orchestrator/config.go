package orchestrator

import (
	"github.com/kbukum/flowkit/config"
	"github.com/kbukum/flowkit/engine"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/scheduler"
	"github.com/kbukum/flowkit/server"
)

// Config is the flowkit service configuration, loaded by config.LoadConfig.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Engine        engine.Config        `yaml:"engine" mapstructure:"engine"`
	Scheduler     scheduler.Config     `yaml:"scheduler" mapstructure:"scheduler"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`

	// Definitions are files or directories of workflow and schedule YAML
	// loaded at startup.
	Definitions []string `yaml:"definitions" mapstructure:"definitions"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "flowkit"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Engine.ApplyDefaults()
	c.Scheduler.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section. The server section is only checked when
// the server is enabled.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if c.Server.Enabled {
		if err := c.Server.Validate(); err != nil {
			return err
		}
	}
	return c.Observability.Validate()
}
