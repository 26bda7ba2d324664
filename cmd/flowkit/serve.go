package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/flowkit/api"
	"github.com/kbukum/flowkit/bootstrap"
	"github.com/kbukum/flowkit/config"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/observability"
	"github.com/kbukum/flowkit/orchestrator"
	"github.com/kbukum/flowkit/server"
	"github.com/kbukum/flowkit/sse"
	"github.com/kbukum/flowkit/version"
	"github.com/kbukum/flowkit/workflow"
)

func newServeCmd() *cobra.Command {
	var configFile, envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the admin API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []config.LoaderOption
			if configFile != "" {
				opts = append(opts, config.WithConfigFile(configFile))
			}
			if envFile != "" {
				opts = append(opts, config.WithEnvFile(envFile))
			}
			var cfg orchestrator.Config
			if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
				return err
			}
			return serve(cmd.Context(), &cfg)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (default: searched)")
	cmd.Flags().StringVar(&envFile, "env-file", "", ".env file (default: searched)")
	return cmd
}

func serve(ctx context.Context, cfg *orchestrator.Config) error {
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	if cfg.Version == "" {
		app.Version = version.Get().Short()
	}

	shutdownTelemetry, err := observability.Setup(ctx, cfg.Observability, cfg.Name, app.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	app.OnStop(func(ctx context.Context) error { return shutdownTelemetry(ctx) })

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		if metrics, err = observability.NewMetrics(observability.Meter(cfg.Name)); err != nil {
			return err
		}
	}

	handlers := builtinHandlers()
	workflow.Instrument(handlers, logger.Get("stage"), metrics)

	hub := sse.NewHub()
	orch := orchestrator.New(*cfg, handlers,
		orchestrator.WithLogger(app.Logger),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithEventSink(hub),
	)
	if len(cfg.Definitions) > 0 {
		if _, err := orch.LoadDefinitions(cfg.Definitions...); err != nil {
			return err
		}
	}

	if err := app.RegisterComponent(sse.NewComponent(hub, api.Prefix+"/stream")); err != nil {
		return err
	}
	if err := app.RegisterComponent(orch); err != nil {
		return err
	}
	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, app.Logger)
		api.New(orch, hub, app.Logger.WithComponent("api")).Register(srv.Engine(), api.Options{
			ServiceName: cfg.Name,
			Auth:        cfg.Server.Auth,
			Health:      app.Components.HealthAll,
		})
		if err := app.RegisterComponent(srv); err != nil {
			return err
		}
	}

	return app.Run(ctx)
}
