package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediacompress/internal/daemonrun"
	"mediacompress/internal/outcome"
)

func newRunOnceCommand(ctx *commandContext) *cobra.Command {
	var ignoreSchedule bool
	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Run a single processing cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.commandLogger(cfg)
			if err != nil {
				return err
			}
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			result, err := daemonrun.RunOnce(runCtx, cfg, daemonrun.OnceOptions{
				IgnoreSchedule: ignoreSchedule,
				Logger:         logger,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.GateClosed {
				fmt.Fprintf(out, "Outside the processing window; next opens at %s (use --ignore-schedule to run now)\n",
					result.NextOpen.Format(time.DateTime))
				return nil
			}
			if result.Summary == nil {
				return nil
			}
			fmt.Fprintln(out, formatSummary(*result.Summary))
			if n := result.Summary.Counts[outcome.StatusFailed]; n > 0 {
				return fmt.Errorf("%d file(s) failed; see `mediacompress history list --status Failed`", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&ignoreSchedule, "ignore-schedule", false, "Process even when outside the configured window")
	return cmd
}

func formatSummary(sum outcome.Summary) string {
	var parts []string
	for _, status := range outcome.Statuses {
		if n := sum.Counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", status, n))
		}
	}
	line := fmt.Sprintf("Cycle %s: %d/%d files processed in %s", sum.CycleID, sum.Processed, sum.Total,
		sum.Duration.Round(time.Millisecond))
	if len(parts) > 0 {
		line += " (" + strings.Join(parts, ", ") + ")"
	}
	if sum.Interrupted {
		line += " [interrupted]"
	}
	if len(sum.MissingTools) > 0 {
		line += " missing tools: " + strings.Join(sum.MissingTools, ", ")
	}
	return line
}
