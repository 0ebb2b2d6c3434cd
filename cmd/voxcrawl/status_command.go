package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/logging"
	"voxcrawl/internal/report"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOutput bool
	var detailed bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show crawl session progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := checkpoint.Open(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer store.Close()

			progress, err := store.LoadOrCreateSession()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeStatusJSON(out, progress, detailed)
			}
			writeStatusText(out, progress, detailed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Include a per-champion breakdown")
	return cmd
}

func writeStatusJSON(out io.Writer, progress *checkpoint.SessionProgress, detailed bool) error {
	payload := struct {
		report.Summary
		Items []report.ItemStatus `json:"items,omitempty"`
	}{Summary: report.Summarize(progress)}
	if detailed {
		payload.Items = report.Breakdown(progress)
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
)

func writeStatusText(out io.Writer, progress *checkpoint.SessionProgress, detailed bool) {
	summary := report.Summarize(progress)
	colorize := isTerminal(out)

	fmt.Fprintf(out, "Session:    %s\n", summary.SessionID)
	fmt.Fprintf(out, "Progress:   %d/%d champions (%.1f%%)\n", summary.Completed, summary.Total, summary.Percentage)
	fmt.Fprintf(out, "Completed:  %d\n", summary.Completed)
	fmt.Fprintf(out, "Failed:     %d\n", summary.Failed)
	fmt.Fprintf(out, "Pending:    %d\n", summary.Pending)
	if summary.InProgress != "" {
		fmt.Fprintf(out, "In flight:  %s\n", summary.InProgress)
	}
	if len(summary.FailedIDs) > 0 {
		line := fmt.Sprintf("Failures:   %s", strings.Join(summary.FailedIDs, ", "))
		if colorize {
			line = ansiRed + line + ansiReset
		}
		fmt.Fprintln(out, line)
	}

	if !detailed {
		return
	}
	rows := make([][]string, 0, summary.Total)
	for _, item := range report.Breakdown(progress) {
		rows = append(rows, []string{item.ID, item.Stage})
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No champions tracked yet")
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"Champion", "Stage"},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
	))
}

// printSummary renders the compact post-run progress view.
func printSummary(out io.Writer, store *checkpoint.Store) error {
	progress, err := store.LoadOrCreateSession()
	if err != nil {
		return err
	}
	summary := report.Summarize(progress)
	fmt.Fprintf(out, "\n%d/%d champions completed (%.1f%%), %d failed, %d pending\n",
		summary.Completed, summary.Total, summary.Percentage, summary.Failed, summary.Pending)
	if len(summary.FailedIDs) > 0 {
		fmt.Fprintf(out, "Failed: %s\n", strings.Join(summary.FailedIDs, ", "))
	}
	return nil
}
