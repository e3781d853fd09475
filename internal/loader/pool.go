package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/raphaelgruber/rowloader/internal/metrics"
	"github.com/raphaelgruber/rowloader/internal/models"
	"golang.org/x/time/rate"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("pool closed")

// Default pool settings.
const (
	DefaultWorkers      = 10
	DefaultTable        = "test1"
	DefaultWriteTimeout = 10 * time.Second
)

// Store persists rows. InsertRow must return only once the write is
// acknowledged, and must be safe for concurrent use.
type Store interface {
	InsertRow(ctx context.Context, table string, row models.Row) error
}

// PoolOption configures a Pool.
type PoolOption func(*poolConfig)

type poolConfig struct {
	workers      int
	taskBuffer   int
	table        string
	writeTimeout time.Duration
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// WithWorkers sets the number of concurrent writers. Values below 1 are ignored.
func WithWorkers(n int) PoolOption {
	return func(cfg *poolConfig) {
		if n > 0 {
			cfg.workers = n
		}
	}
}

// WithTaskBuffer sets the capacity of the task channel.
// If not specified, it defaults to the worker count.
func WithTaskBuffer(n int) PoolOption {
	return func(cfg *poolConfig) {
		if n > 0 {
			cfg.taskBuffer = n
		}
	}
}

// WithTable sets the table rows are written to.
func WithTable(name string) PoolOption {
	return func(cfg *poolConfig) {
		if name != "" {
			cfg.table = name
		}
	}
}

// WithWriteTimeout bounds every write. Zero disables the bound.
func WithWriteTimeout(d time.Duration) PoolOption {
	return func(cfg *poolConfig) {
		if d >= 0 {
			cfg.writeTimeout = d
		}
	}
}

// WithRateLimit caps writes across all workers at perSecond, allowing bursts
// of up to burst writes. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) PoolOption {
	return func(cfg *poolConfig) {
		if perSecond <= 0 {
			cfg.limiter = nil
			return
		}
		cfg.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// WithLogger sets the pool's logger.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(cfg *poolConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Pool writes submitted rows with a fixed number of worker goroutines.
// A row whose write fails is counted once as a failure and handed to the
// retry queue; the pool itself never retries.
type Pool struct {
	store   Store
	queue   *RetryQueue
	metrics *metrics.Collector
	cfg     poolConfig

	tasks chan models.Row
	wg    sync.WaitGroup
	idle  chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewPool starts the pool's workers.
func NewPool(store Store, queue *RetryQueue, collector *metrics.Collector, opts ...PoolOption) *Pool {
	cfg := poolConfig{
		workers:      DefaultWorkers,
		table:        DefaultTable,
		writeTimeout: DefaultWriteTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.taskBuffer == 0 {
		cfg.taskBuffer = cfg.workers
	}

	p := &Pool{
		store:   store,
		queue:   queue,
		metrics: collector,
		cfg:     cfg,
		tasks:   make(chan models.Row, cfg.taskBuffer),
		idle:    make(chan struct{}),
	}

	p.wg.Add(cfg.workers)
	for i := range cfg.workers {
		go p.worker(i)
	}
	go func() {
		p.wg.Wait()
		close(p.idle)
	}()

	return p
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.cfg.workers
}

// Submit hands row to the workers. It blocks while the task buffer is full.
func (p *Pool) Submit(ctx context.Context, row models.Row) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- row:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting rows and waits for every accepted row to be written.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	<-p.idle
}

// Idle is closed once every worker has exited, which happens after Close.
func (p *Pool) Idle() <-chan struct{} {
	return p.idle
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for row := range p.tasks {
		p.process(id, row)
	}
}

func (p *Pool) process(id int, row models.Row) {
	if p.cfg.limiter != nil {
		// cannot fail: the context never ends and burst is at least 1
		_ = p.cfg.limiter.Wait(context.Background())
	}

	start := time.Now()
	err := writeRow(p.store, p.cfg.table, row, p.cfg.writeTimeout)
	p.metrics.RecordTiming(metrics.OpInsert, time.Since(start))

	if err != nil {
		p.metrics.IncrementFailure()
		p.cfg.logger.Warn("write failed, queued for retry",
			"worker", id, "run", row.Run(), "line", row.Line(), "error", err)
		p.queue.Push(row)
		return
	}
	p.metrics.IncrementSuccess()
}

// writeRow performs one write attempt. The write is not tied to any caller
// context, so shutdown never interrupts it; only timeout bounds it.
// A panicking store is reported as a failed write.
func writeRow(store Store, table string, row models.Row, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("store panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return store.InsertRow(ctx, table, row)
}
