// Package cli — history.go implements the "paddock history" command,
// which lists recent launches from the state database.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/paddock/internal/model"
	"github.com/mmr-tortoise/paddock/internal/state"
)

// historyFlags holds the flag values for the history command.
type historyFlags struct {
	limit   int    // --limit: maximum rows shown
	job     string // --job: filter by workflow
	failed  bool   // --failed: only failed runs
	stateDB string // --state-db: database path override
}

// NewHistoryCommand creates the "history" cobra command.
func NewHistoryCommand() *cobra.Command {
	flags := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent launches",
		Long: `Show recent launches of the automation module, newest first, with
their job, duration, and exit status.

Examples:
  paddock history
  paddock history --limit 50
  paddock history --job nurturing --failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), flags)
		},
	}

	cmd.Flags().IntVar(&flags.limit, "limit", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&flags.job, "job", "", "Only show runs of this job")
	cmd.Flags().BoolVar(&flags.failed, "failed", false, "Only show failed runs")
	cmd.Flags().StringVar(&flags.stateDB, "state-db", "", "Run history database path")

	return cmd
}

// runHistory queries and prints the run records.
func runHistory(ctx context.Context, flags *historyFlags) error {
	path := flags.stateDB
	if path == "" {
		var err error
		path, err = state.DefaultPath()
		if err != nil {
			return err
		}
	}
	store, err := state.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	filter := state.ListFilter{Limit: flags.limit}
	if flags.job != "" {
		job, err := model.ParseJob(flags.job)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "invalid job filter", err)
		}
		filter.Job = job
	}
	if flags.failed {
		filter.Status = model.StatusFailed
	}

	runs, err := store.ListRuns(ctx, filter)
	if err != nil {
		return err
	}

	printHistoryResult(runs)
	return nil
}

// printHistoryResult outputs the run list in text or JSON format.
func printHistoryResult(runs []model.RunRecord) {
	if IsJSONOutput() {
		if runs == nil {
			runs = []model.RunRecord{}
		}
		data, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}

	fmt.Printf("%-19s %-18s %-14s %-10s %-9s %s\n",
		"STARTED", "JOB", "PROFILE", "STATUS", "EXIT", "DURATION")
	for _, run := range runs {
		exit := "-"
		duration := "-"
		if run.Status != model.StatusRunning {
			exit = fmt.Sprintf("%d", run.ExitCode)
			duration = formatRunDuration(run.Duration)
		}
		fmt.Printf("%-19s %-18s %-14s %-10s %-9s %s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Job, run.Profile, run.Status, exit, duration)
	}
}

// formatRunDuration renders a duration in a compact fixed-ish width.
// Nurturing runs last hours; second precision is plenty.
func formatRunDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return d.String()
}
