package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/rowloader/internal/config"
	"github.com/raphaelgruber/rowloader/internal/loader"
	"github.com/raphaelgruber/rowloader/internal/service"
	"github.com/raphaelgruber/rowloader/internal/source"
	"github.com/spf13/cobra"
)

var (
	loadTable        string
	loadFields       []string
	loadWorkers      int
	loadSkipHeader   bool
	loadRate         float64
	loadPollInterval time.Duration
	loadWriteTimeout time.Duration
	loadDelimiter    string
	loadProgress     bool
)

var loadCmd = &cobra.Command{
	Use:   "load <file.csv>",
	Short: "Load a CSV file into a table",
	Long: `Load every record of a CSV file into a SurrealDB table.

Each record is mapped positionally onto the configured field names. Records
with fewer fields are skipped; extra fields are ignored. Use "-" to read
standard input.

Interrupting the load stops reading new records, but rows already read are
still written and retried before the command exits.

Examples:
  rowloader load data.csv
  rowloader load data.csv --table people --fields id,name,email --skip-header
  cat data.csv | rowloader load - --workers 32 --rate 500`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	f := loadCmd.Flags()
	f.StringVarP(&loadTable, "table", "t", "", "target table (default from config)")
	f.StringSliceVarP(&loadFields, "fields", "f", nil, "field names, in column order (default foo,bar,baz)")
	f.IntVarP(&loadWorkers, "workers", "w", 0, "concurrent writers (default from config)")
	f.BoolVar(&loadSkipHeader, "skip-header", false, "treat the first record as a header")
	f.Float64Var(&loadRate, "rate", 0, "maximum writes per second, 0 for unlimited")
	f.DurationVar(&loadPollInterval, "poll-interval", 0, "retry queue poll interval")
	f.DurationVar(&loadWriteTimeout, "write-timeout", 0, "timeout for a single write")
	f.StringVarP(&loadDelimiter, "delimiter", "d", ",", "field delimiter")
	f.BoolVar(&loadProgress, "progress", true, "show live progress when attached to a terminal")

	rootCmd.AddCommand(loadCmd)
}

// applyLoadFlags lets explicitly set load flags override the configuration.
func applyLoadFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("table") {
		c.Table = loadTable
	}
	if flags.Changed("fields") {
		c.Fields = loadFields
	}
	if flags.Changed("workers") {
		if loadWorkers < 1 {
			return fmt.Errorf("--workers must be at least 1")
		}
		c.Workers = loadWorkers
	}
	if flags.Changed("skip-header") {
		c.SkipHeader = loadSkipHeader
	}
	if flags.Changed("rate") {
		c.RateLimit = loadRate
	}
	if flags.Changed("poll-interval") {
		c.PollInterval = loadPollInterval
	}
	if flags.Changed("write-timeout") {
		c.WriteTimeout = loadWriteTimeout
	}
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	comma, err := parseDelimiter(loadDelimiter)
	if err != nil {
		return err
	}

	reader, err := source.OpenCSV(args[0], source.Options{Comma: comma})
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := service.NewLoadService(dbClient, service.NewRunManager(dbClient))
	req := service.LoadRequest{
		Source:       reader.Name(),
		Table:        cfg.Table,
		Fields:       cfg.Fields,
		Workers:      cfg.Workers,
		SkipHeader:   cfg.SkipHeader,
		PollInterval: cfg.PollInterval,
		WriteTimeout: cfg.WriteTimeout,
		RateLimit:    cfg.RateLimit,
	}

	var res *service.LoadResult
	var loadErr error
	if progressEnabled(cmd) {
		res, loadErr = loadWithProgress(ctx, stop, svc, reader, req)
	} else {
		res, loadErr = svc.Load(ctx, reader, req)
	}

	if res != nil {
		printSummary(res)
	}
	if loadErr != nil {
		return fmt.Errorf("load %s: %w", reader.Name(), loadErr)
	}
	return nil
}

// loadWithProgress runs the load in the background while the progress view
// owns the terminal.
func loadWithProgress(ctx context.Context, cancel context.CancelFunc, svc *service.LoadService, r loader.RecordReader, req service.LoadRequest) (*service.LoadResult, error) {
	started := make(chan *loader.Loader, 1)
	req.OnStart = func(l *loader.Loader) { started <- l }

	type outcome struct {
		res *service.LoadResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := svc.Load(ctx, r, req)
		done <- outcome{res, err}
	}()

	select {
	case l := <-started:
		if err := RunLoadProgress(l, cancel); err != nil {
			logger.Warn("progress view failed", "error", err)
		}
	case o := <-done:
		// failed before any record was read
		return o.res, o.err
	}

	o := <-done
	return o.res, o.err
}

func printSummary(res *service.LoadResult) {
	m := res.Result.Metrics
	fmt.Printf("success=%d\n", m.Success)
	fmt.Printf("failure=%d\n", m.Failure)
	fmt.Printf("retry_succeeded=%d\n", m.RetrySucceeded)
	fmt.Printf("retry_dropped=%d\n", m.RetryDropped)
	if m.Malformed > 0 {
		fmt.Printf("malformed=%d\n", m.Malformed)
	}
	fmt.Printf("delivered=%d\n", m.Delivered())
	fmt.Printf("run=%s status=%s duration=%s\n", res.Run.ID, res.Run.Status, res.Result.Duration.Round(time.Millisecond))
	if m.Insert != nil {
		fmt.Printf("insert avg=%.1fms min=%dms max=%dms\n", m.Insert.AvgTimeMs, m.Insert.MinTimeMs, m.Insert.MaxTimeMs)
	}
}

func parseDelimiter(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r[0], nil
}
