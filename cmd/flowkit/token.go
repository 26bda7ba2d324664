package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/flowkit/config"
	"github.com/kbukum/flowkit/orchestrator"
)

func newTokenCmd() *cobra.Command {
	var (
		configFile string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an admin API bearer token signed with server.auth.secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.LoaderOption
			if configFile != "" {
				opts = append(opts, config.WithConfigFile(configFile))
			}
			var cfg orchestrator.Config
			if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
				return err
			}
			cfg.ApplyDefaults()
			auth := cfg.Server.Auth
			if ttl > 0 {
				auth.TokenTTL = ttl
			}
			if err := auth.Validate(); err != nil {
				return err
			}
			token, err := auth.Issue(args[0], time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (default: searched)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: server.auth.token_ttl)")
	return cmd
}
