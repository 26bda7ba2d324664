package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/flowkit/cron"
)

func newCronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Inspect cron expressions",
	}
	cmd.AddCommand(newCronNextCmd())
	return cmd
}

func newCronNextCmd() *cobra.Command {
	var (
		from  string
		count int
		tz    string
	)
	cmd := &cobra.Command{
		Use:   "next <expr>",
		Short: "Print the next matching times of a five-field cron expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := cron.Parse(args[0])
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("--tz: %w", err)
			}
			start := time.Now().In(loc)
			if from != "" {
				if start, err = time.Parse(time.RFC3339, from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				start = start.In(loc)
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			for range count {
				next, err := sched.Next(start)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), next.Format(time.RFC3339))
				start = next
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start time, RFC3339 (default: now)")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of times to print")
	cmd.Flags().StringVar(&tz, "tz", "UTC", "IANA time zone the expression is evaluated in")
	return cmd
}
