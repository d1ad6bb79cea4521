package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediacompress/internal/deps"
	"mediacompress/internal/preflight"
	"mediacompress/internal/schedule"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check external tools, directories and the processing window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := newCheckReport(out)

			report.section("Tools")
			statuses := preflight.CheckSystemDeps(cfg)
			for _, status := range statuses {
				if status.Available {
					report.add(status.Name, levelPass, status.Path)
					continue
				}
				report.add(status.Name, levelFail, status.Detail)
			}

			report.section("Directories")
			for _, result := range preflight.RunAll(cfg) {
				level := levelPass
				if !result.Passed {
					level = levelFail
				}
				report.add(result.Name, level, result.Detail)
			}

			report.section("Processing")
			report.add("Window", levelInfo, windowLabel(cfg.Schedule.StartHour, cfg.Schedule.EndHour))
			report.add("Delete originals", levelInfo, yesNo(cfg.Workflow.DeleteOriginal))
			report.add("Metrics endpoint", levelInfo, metricsLabel(cfg.Metrics.Enabled, cfg.Metrics.Bind))

			fmt.Fprintln(out, report)
			if report.failures > 0 {
				if missing := deps.Missing(statuses); len(missing) > 0 {
					return fmt.Errorf("%d check(s) failed; missing tools: %s", report.failures, strings.Join(missing, ", "))
				}
				return fmt.Errorf("%d check(s) failed", report.failures)
			}
			return nil
		},
	}
}

func windowLabel(start, end float64) string {
	if (schedule.Window{Start: start, End: end}).AlwaysOpen() {
		return "always open"
	}
	return fmt.Sprintf("%s to %s", formatHour(start), formatHour(end))
}

func formatHour(hour float64) string {
	minutes := int(hour * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func metricsLabel(enabled bool, bind string) string {
	if !enabled {
		return "disabled"
	}
	return "http://" + bind + "/metrics"
}
