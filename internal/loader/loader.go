package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/rowloader/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRun is returned when Run is called a second time on a Loader.
var ErrAlreadyRun = errors.New("loader already run")

// Options configures a Loader. Zero values select defaults.
type Options struct {
	RunID        string
	Table        string
	Fields       []string
	Workers      int
	TaskBuffer   int
	SkipHeader   bool
	PollInterval time.Duration
	WriteTimeout time.Duration
	RateLimit    float64 // writes per second, 0 = unlimited
	RateBurst    int
	Logger       *slog.Logger
}

// Result summarizes a finished load.
type Result struct {
	RunID     string
	Metrics   metrics.Snapshot
	Submitted int64
	// Pending is the retry queue length at the end; always zero once drained.
	Pending  int
	Duration time.Duration
}

// Loader wires an ingestor, a worker pool and a retry worker together for a
// single load.
type Loader struct {
	store     Store
	opts      Options
	collector *metrics.Collector
	lifecycle *Lifecycle
	queue     *RetryQueue
	ingestor  atomic.Pointer[Ingestor]
	started   atomic.Bool
}

// New creates a loader writing to store.
func New(store Store, opts Options) *Loader {
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()[:8]
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loader{
		store:     store,
		opts:      opts,
		collector: metrics.NewCollector(),
		lifecycle: NewLifecycle(),
		queue:     NewRetryQueue(),
	}
}

// RunID identifies this load.
func (l *Loader) RunID() string { return l.opts.RunID }

// Collector exposes the live counters.
func (l *Loader) Collector() *metrics.Collector { return l.collector }

// Finished reports whether every row, including retries, has been attempted.
func (l *Loader) Finished() bool { return l.lifecycle.Finished() }

// Done is closed once the load is finished.
func (l *Loader) Done() <-chan struct{} { return l.lifecycle.Done() }

// Submitted returns the number of rows handed to the pool so far.
func (l *Loader) Submitted() int64 {
	if in := l.ingestor.Load(); in != nil {
		return in.Submitted()
	}
	return 0
}

// Run loads every record from r and returns once all writes and retries have
// been attempted. Cancelling ctx stops reading new records, but rows already
// read are still written and retried. The returned error is the ingestion
// error, if any; the Result is valid either way.
func (l *Loader) Run(ctx context.Context, r RecordReader) (Result, error) {
	if !l.started.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRun
	}

	start := time.Now()
	log := l.opts.Logger.With("run", l.opts.RunID)

	pool := NewPool(l.store, l.queue, l.collector,
		WithWorkers(l.opts.Workers),
		WithTaskBuffer(l.opts.TaskBuffer),
		WithTable(l.opts.Table),
		WithWriteTimeout(l.opts.WriteTimeout),
		WithRateLimit(l.opts.RateLimit, l.opts.RateBurst),
		WithLogger(log),
	)
	retry := NewRetryWorker(l.store, l.queue, l.lifecycle, l.collector, pool.Idle(), RetryConfig{
		Table:        l.opts.Table,
		PollInterval: l.opts.PollInterval,
		WriteTimeout: l.opts.WriteTimeout,
		Logger:       log,
	})
	ingestor := NewIngestor(pool, l.lifecycle, l.collector, IngestConfig{
		RunID:      l.opts.RunID,
		Fields:     l.opts.Fields,
		SkipHeader: l.opts.SkipHeader,
		Logger:     log,
	})
	l.ingestor.Store(ingestor)

	log.Info("load started", "table", l.opts.Table, "workers", pool.Workers())

	// No shared context: an ingestion failure must not cut the retry drain short.
	var g errgroup.Group
	g.Go(func() error {
		defer pool.Close()
		return ingestor.Run(ctx, r)
	})
	g.Go(retry.Run)
	err := g.Wait()

	res := Result{
		RunID:     l.opts.RunID,
		Metrics:   l.collector.Snapshot(),
		Submitted: ingestor.Submitted(),
		Pending:   l.queue.Len(),
		Duration:  time.Since(start),
	}

	log.Info("load finished",
		"submitted", res.Submitted,
		"success", res.Metrics.Success,
		"failure", res.Metrics.Failure,
		"retry_succeeded", res.Metrics.RetrySucceeded,
		"retry_dropped", res.Metrics.RetryDropped,
		"duration", res.Duration)

	return res, err
}
