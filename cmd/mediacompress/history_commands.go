package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediacompress/internal/history"
	"mediacompress/internal/outcome"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded file outcomes",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		status  string
		file    string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent outcomes, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := history.Filter{Limit: limit, File: strings.TrimSpace(file)}
			if status != "" {
				parsed, err := parseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = parsed
			}
			return withHistory(ctx, func(store *history.Store) error {
				entries, err := store.Recent(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, historyRows(entries))
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No outcomes recorded")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.RecordedAt.Local().Format(time.DateTime),
						entry.FileName,
						titleLabel(entry.Kind),
						entry.Outcome().String(),
						entry.Elapsed.Round(time.Millisecond).String(),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{title: "Recorded"},
					{title: "File"},
					{title: "Kind"},
					{title: "Outcome"},
					{title: "Elapsed", numeric: true},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries")
	cmd.Flags().StringVar(&status, "status", "", "Only show this status (e.g. Failed, Completed)")
	cmd.Flags().StringVar(&file, "file", "", "Only show entries for this file name")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan string
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history older than a cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			age, err := parseAge(olderThan)
			if err != nil {
				return err
			}
			return withHistory(ctx, func(store *history.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-age))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d outcome(s) older than %s\n", removed, olderThan)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&olderThan, "older-than", "30d", "Age cutoff, e.g. 30d or 12h")
	return cmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func parseStatus(value string) (outcome.Status, error) {
	for _, status := range outcome.Statuses {
		if strings.EqualFold(string(status), strings.TrimSpace(value)) {
			return status, nil
		}
	}
	names := make([]string, len(outcome.Statuses))
	for i, status := range outcome.Statuses {
		names[i] = string(status)
	}
	return "", fmt.Errorf("unknown status %q (expected one of %s)", value, strings.Join(names, ", "))
}

// parseAge accepts Go durations plus a whole-day suffix.
func parseAge(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid age %q: %w", value, err)
	}
	if d < 0 {
		return 0, errors.New("age must not be negative")
	}
	return d, nil
}

type historyRow struct {
	RecordedAt time.Time `json:"recorded_at"`
	CycleID    string    `json:"cycle_id"`
	File       string    `json:"file"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path,omitempty"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms"`
}

func historyRows(entries []history.Entry) []historyRow {
	rows := make([]historyRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, historyRow{
			RecordedAt: entry.RecordedAt,
			CycleID:    entry.CycleID,
			File:       entry.FileName,
			InputPath:  entry.InputPath,
			OutputPath: entry.OutputPath,
			Kind:       entry.Kind,
			Status:     string(entry.Status),
			Reason:     entry.Reason,
			Detail:     entry.Detail,
			ElapsedMS:  entry.Elapsed.Milliseconds(),
		})
	}
	return rows
}
