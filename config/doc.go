// Package config loads flowkit configuration from a YAML file, an optional
// .env file and prefixed environment variables, using viper and godotenv.
//
// Precedence, lowest first: YAML file, .env file, process environment.
// Environment variables carry the upper-cased service name as prefix, so
// FLOWKIT_SCHEDULER_TICK_INTERVAL sets scheduler.tick_interval.
//
//	var cfg orchestrator.Config
//	if err := config.LoadConfig("flowkit", &cfg, config.WithConfigFile(path)); err != nil {
//	    return err
//	}
package config
