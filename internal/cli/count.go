package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/rowloader/internal/service"
	"github.com/spf13/cobra"
)

var countRun string

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count rows in the target table",
	Long: `Count rows in the target table, optionally only those written by one run.

Examples:
  rowloader count
  rowloader count --table people
  rowloader count --run 1a2b3c4d`,
	Args: cobra.NoArgs,
	RunE: runCount,
}

func init() {
	countCmd.Flags().StringVarP(&loadTable, "table", "t", "", "table to count (default from config)")
	countCmd.Flags().StringVar(&countRun, "run", "", "only count rows from this run")
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc := service.NewLoadService(dbClient, nil)
	n, err := svc.CountRows(ctx, cfg.Table, countRun)
	if err != nil {
		return err
	}

	if countRun != "" {
		fmt.Printf("%s: %d rows from run %s\n", cfg.Table, n, countRun)
		return nil
	}
	fmt.Printf("%s: %d rows\n", cfg.Table, n)
	return nil
}
