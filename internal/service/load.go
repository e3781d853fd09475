package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/rowloader/internal/loader"
	"github.com/raphaelgruber/rowloader/internal/metrics"
	"github.com/raphaelgruber/rowloader/internal/models"
)

// RowStore is the store a load writes into.
type RowStore interface {
	loader.Store
	InitSchema(ctx context.Context, table string) error
	CountRows(ctx context.Context, table, run string) (int64, error)
}

// LoadRequest describes one load.
type LoadRequest struct {
	Source       string // shown in logs and the run record
	Table        string
	Fields       []string
	Workers      int
	SkipHeader   bool
	PollInterval time.Duration
	WriteTimeout time.Duration
	RateLimit    float64

	// OnStart, if set, is called with the loader before any record is read.
	// It must not block.
	OnStart func(*loader.Loader)
}

// LoadResult is the outcome of a load.
type LoadResult struct {
	Run    Run
	Result loader.Result
}

// LoadService runs loads and records them as runs.
type LoadService struct {
	store RowStore
	runs  *RunManager
	// progressInterval is how often running counters are handed to the run manager.
	progressInterval time.Duration
}

// NewLoadService creates a load service.
func NewLoadService(store RowStore, runs *RunManager) *LoadService {
	return &LoadService{store: store, runs: runs, progressInterval: time.Second}
}

// Load writes every record from r into req.Table. The run record is updated
// even if ctx is cancelled. The returned error is the ingestion error; the
// result is filled in either way once the run was created.
func (s *LoadService) Load(ctx context.Context, r loader.RecordReader, req LoadRequest) (*LoadResult, error) {
	if err := s.store.InitSchema(ctx, req.Table); err != nil {
		return nil, fmt.Errorf("prepare table: %w", err)
	}

	run, err := s.runs.CreateRun(ctx, req.Source, req.Table, req.Workers)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	l := loader.New(s.store, loader.Options{
		RunID:        run.ID,
		Table:        req.Table,
		Fields:       req.Fields,
		Workers:      req.Workers,
		SkipHeader:   req.SkipHeader,
		PollInterval: req.PollInterval,
		WriteTimeout: req.WriteTimeout,
		RateLimit:    req.RateLimit,
		Logger:       slog.Default(),
	})
	if req.OnStart != nil {
		req.OnStart(l)
	}

	// bookkeeping outlives a cancelled load
	bgCtx := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	tracked := make(chan struct{})
	go func() {
		defer close(tracked)
		s.trackProgress(bgCtx, run, l, stop)
	}()

	res, loadErr := l.Run(ctx, r)
	close(stop)
	<-tracked

	counts := RunCounts(res.Metrics)
	if loadErr != nil {
		s.runs.Fail(bgCtx, run, loadErr, counts)
	} else {
		s.runs.Complete(bgCtx, run, counts)
	}

	return &LoadResult{Run: run.Snapshot(), Result: res}, loadErr
}

// CountRows returns the number of rows in table, optionally for one run only.
func (s *LoadService) CountRows(ctx context.Context, table, run string) (int64, error) {
	n, err := s.store.CountRows(ctx, table, run)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *LoadService) trackProgress(ctx context.Context, run *Run, l *loader.Loader, stop <-chan struct{}) {
	ticker := time.NewTicker(s.progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runs.UpdateProgress(ctx, run, RunCounts(l.Collector().Snapshot()))
		case <-stop:
			return
		}
	}
}

// RunCounts converts a metrics snapshot to stored run counters.
func RunCounts(s metrics.Snapshot) models.RunCounts {
	return models.RunCounts{
		Success:        s.Success,
		Failure:        s.Failure,
		RetrySucceeded: s.RetrySucceeded,
		RetryDropped:   s.RetryDropped,
		Malformed:      s.Malformed,
	}
}
