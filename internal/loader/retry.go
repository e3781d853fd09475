package loader

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/rowloader/internal/metrics"
	"github.com/raphaelgruber/rowloader/internal/models"
)

// DefaultPollInterval is how long the retry worker waits for a queued row
// before checking whether ingestion has finished.
const DefaultPollInterval = 50 * time.Millisecond

// RetryConfig configures a RetryWorker.
type RetryConfig struct {
	Table        string
	PollInterval time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// RetryWorker gives every row in the retry queue one more write attempt.
// A row that fails again is dropped; nothing is ever pushed back.
type RetryWorker struct {
	store     Store
	queue     *RetryQueue
	lifecycle *Lifecycle
	metrics   *metrics.Collector
	poolIdle  <-chan struct{}
	cfg       RetryConfig
}

// NewRetryWorker creates a retry worker. poolIdle must be closed once no
// more rows can be pushed onto queue.
func NewRetryWorker(store Store, queue *RetryQueue, lc *Lifecycle, collector *metrics.Collector, poolIdle <-chan struct{}, cfg RetryConfig) *RetryWorker {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RetryWorker{
		store:     store,
		queue:     queue,
		lifecycle: lc,
		metrics:   collector,
		poolIdle:  poolIdle,
		cfg:       cfg,
	}
}

// Run retries rows as they arrive until ingestion is done, then waits for the
// pool to go idle, drains whatever is left, and marks the lifecycle drained.
func (w *RetryWorker) Run() error {
	for !w.lifecycle.IngestionDone() {
		if row, ok := w.queue.Poll(w.cfg.PollInterval); ok {
			w.attempt(row)
		}
	}

	<-w.poolIdle

	drained := 0
	for {
		rows := w.queue.DrainAll()
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			w.attempt(row)
		}
		drained += len(rows)
	}
	w.cfg.Logger.Debug("retry queue drained", "rows", drained)

	if err := w.lifecycle.MarkRetryDrained(); err != nil {
		return fmt.Errorf("mark retry drained: %w", err)
	}
	return nil
}

func (w *RetryWorker) attempt(row models.Row) {
	start := time.Now()
	err := writeRow(w.store, w.cfg.Table, row, w.cfg.WriteTimeout)
	w.metrics.RecordTiming(metrics.OpRetryInsert, time.Since(start))

	if err != nil {
		w.metrics.RecordRetryDropped()
		w.cfg.Logger.Error("retry failed, dropping row",
			"run", row.Run(), "line", row.Line(), "error", err)
		return
	}
	w.metrics.RecordRetrySuccess()
}
