package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/flowkit/dag"
	"github.com/kbukum/flowkit/workflow"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|dir>...",
		Short: "Validate workflow definitions and print their execution levels",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := workflow.Load(args...)
			if err != nil {
				return err
			}
			if invalid := report(cmd.OutOrStdout(), bundle); invalid > 0 {
				return fmt.Errorf("%d of %d workflows invalid", invalid, len(bundle.Workflows))
			}
			return nil
		},
	}
}

// report prints one block per workflow and returns the number of invalid ones.
func report(w io.Writer, bundle *workflow.Bundle) int {
	invalid := 0
	for _, def := range bundle.Workflows {
		result := dag.Validate(def)
		status := "ok"
		if !result.Valid {
			status = "INVALID"
			invalid++
		}
		fmt.Fprintf(w, "%s (%d stages): %s\n", def.ID, len(def.Stages), status)
		for _, issue := range result.Errors {
			fmt.Fprintf(w, "  error   %-34s %s\n", issue.Code, issue.Message)
		}
		for _, issue := range result.Warnings {
			fmt.Fprintf(w, "  warning %-34s %s\n", issue.Code, issue.Message)
		}
		if !result.Valid {
			continue
		}
		levels, err := dag.Levels(def)
		if err != nil {
			continue
		}
		for i, level := range levels {
			fmt.Fprintf(w, "  level %d: %s\n", i, strings.Join(level, ", "))
		}
	}
	if len(bundle.Schedules) > 0 {
		fmt.Fprintf(w, "%d schedules\n", len(bundle.Schedules))
	}
	return invalid
}
