package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/orchestrator"
	"github.com/kbukum/flowkit/workflow"
)

func newRunCmd() *cobra.Command {
	var (
		pairs   []string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "run <file|dir> <workflow-id>",
		Short: "Execute a workflow once with the built-in handlers and print the instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(pairs)
			if err != nil {
				return err
			}
			log := logger.NewNop()
			if verbose {
				log = logger.NewWithWriter(&logger.Config{Level: "debug", Format: logger.FormatConsole}, serviceName, os.Stderr)
			}
			logger.SetGlobalLogger(log)

			var cfg orchestrator.Config
			orch := orchestrator.New(cfg, builtinHandlers(), orchestrator.WithLogger(log))
			if _, err := orch.LoadDefinitions(args[0]); err != nil {
				return err
			}
			inst, err := orch.Engine().Execute(cmd.Context(), args[1], params, "cli")
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), inst); err != nil {
				return err
			}
			if inst.Status != workflow.InstanceCompleted {
				msg, _ := inst.FatalError()
				return fmt.Errorf("instance %s %s: %s", inst.ID, inst.Status, msg)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&pairs, "param", "p", nil, "workflow parameter key=value (repeatable)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	return cmd
}
