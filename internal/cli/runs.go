package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/rowloader/internal/db"
	"github.com/raphaelgruber/rowloader/internal/models"
	"github.com/spf13/cobra"
)

var (
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List or inspect load runs",
	Long: `List recent load runs or inspect a specific run by ID.

Examples:
  rowloader runs                    # List recent runs
  rowloader runs --status failed    # Only failed runs
  rowloader runs 1a2b3c4d           # Show details for run 1a2b3c4d`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (running, completed, failed)")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showRun(ctx, args[0])
	}
	return listRuns(ctx)
}

func listRuns(ctx context.Context) error {
	switch runsStatus {
	case "", models.RunStatusRunning, models.RunStatusCompleted, models.RunStatusFailed:
	default:
		return fmt.Errorf("unknown status %q", runsStatus)
	}

	runs, err := dbClient.ListRuns(ctx, runsStatus, runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("%-10s %-10s %-12s %-9s %-9s %-9s %s\n", "ID", "TABLE", "STATUS", "SUCCESS", "FAILURE", "DROPPED", "STARTED")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, run := range runs {
		id := models.MustRecordIDString(run.ID)
		started := run.StartedAt.Local().Format("2006-01-02 15:04:05")
		fmt.Printf("%-10s %-10s %-12s %-9d %-9d %-9d %s\n",
			id, run.Table, run.Status, run.Success, run.Failure, run.RetryDropped, started)
	}

	return nil
}

func showRun(ctx context.Context, id string) error {
	run, err := dbClient.GetRun(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	fmt.Printf("Run: %s\n", id)
	fmt.Printf("  Source: %s\n", run.Source)
	fmt.Printf("  Table: %s\n", run.Table)
	fmt.Printf("  Status: %s\n", run.Status)
	fmt.Printf("  Workers: %d\n", run.Workers)
	fmt.Printf("  Started: %s\n", run.StartedAt.Format(time.RFC3339))
	if run.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", run.CompletedAt.Format(time.RFC3339))
		fmt.Printf("  Duration: %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != nil && *run.Error != "" {
		fmt.Printf("  Error: %s\n", *run.Error)
	}

	fmt.Println("\nCounts:")
	fmt.Printf("  success=%d\n", run.Success)
	fmt.Printf("  failure=%d\n", run.Failure)
	fmt.Printf("  retry_succeeded=%d\n", run.RetrySucceeded)
	fmt.Printf("  retry_dropped=%d\n", run.RetryDropped)
	if run.Malformed > 0 {
		fmt.Printf("  malformed=%d\n", run.Malformed)
	}

	return nil
}
