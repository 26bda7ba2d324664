package bootstrap

import "github.com/kbukum/flowkit/config"

// Config is satisfied by any pointer to a struct embedding
// config.ServiceConfig that also defines ApplyDefaults and Validate.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
