// Package service ties the loader to run bookkeeping and the store.
package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/rowloader/internal/models"
)

// progressDebounce limits how often running counters are persisted.
const progressDebounce = 5 * time.Second

// RunStore persists load runs.
type RunStore interface {
	CreateRun(ctx context.Context, id, source, table string, workers int) error
	UpdateRunCounts(ctx context.Context, id string, counts models.RunCounts) error
	CompleteRun(ctx context.Context, id string, counts models.RunCounts) error
	FailRun(ctx context.Context, id, errMsg string, counts models.RunCounts) error
}

// Run is the in-memory view of one load run.
type Run struct {
	ID          string
	Source      string
	Table       string
	Workers     int
	Status      string
	Counts      models.RunCounts
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	mu                 sync.RWMutex
	lastProgressUpdate time.Time
}

// RunManager tracks load runs and mirrors them to a RunStore.
type RunManager struct {
	runs map[string]*Run
	mu   sync.RWMutex
	db   RunStore
}

// NewRunManager creates a run manager. A nil store keeps runs in memory only.
func NewRunManager(store RunStore) *RunManager {
	return &RunManager{
		runs: make(map[string]*Run),
		db:   store,
	}
}

// CreateRun registers a new running load and persists it.
func (m *RunManager) CreateRun(ctx context.Context, source, table string, workers int) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Source:    source,
		Table:     table,
		Workers:   workers,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}

	if m.db != nil {
		if err := m.db.CreateRun(ctx, run.ID, source, table, workers); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()

	slog.Info("run created", "run_id", run.ID, "source", source, "table", table, "workers", workers)
	return run, nil
}

// GetRun retrieves a run by ID.
func (m *RunManager) GetRun(id string) *Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs[id]
}

// ListRuns returns all runs, most recent first.
func (m *RunManager) ListRuns() []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}

	slices.SortFunc(runs, func(a, b *Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})

	return runs
}

// UpdateProgress records the current counters, persisting them at most
// once per debounce interval.
func (m *RunManager) UpdateProgress(ctx context.Context, run *Run, counts models.RunCounts) {
	run.mu.Lock()
	run.Counts = counts
	shouldPersist := m.db != nil && time.Since(run.lastProgressUpdate) > progressDebounce
	if shouldPersist {
		run.lastProgressUpdate = time.Now()
	}
	run.mu.Unlock()

	if shouldPersist {
		if err := m.db.UpdateRunCounts(ctx, run.ID, counts); err != nil {
			slog.Warn("failed to persist run progress", "run_id", run.ID, "error", err)
		}
	}
}

// Complete marks a run completed with its final counters.
func (m *RunManager) Complete(ctx context.Context, run *Run, counts models.RunCounts) {
	run.mu.Lock()
	run.Status = models.RunStatusCompleted
	run.Counts = counts
	now := time.Now()
	run.CompletedAt = &now
	run.mu.Unlock()

	if m.db != nil {
		if err := m.db.CompleteRun(ctx, run.ID, counts); err != nil {
			slog.Warn("failed to persist run completion", "run_id", run.ID, "error", err)
		}
	}

	slog.Info("run completed", "run_id", run.ID, "success", counts.Success, "failure", counts.Failure)
}

// Fail marks a run failed. The counters reached so far are kept.
func (m *RunManager) Fail(ctx context.Context, run *Run, err error, counts models.RunCounts) {
	run.mu.Lock()
	run.Status = models.RunStatusFailed
	run.Error = err.Error()
	run.Counts = counts
	now := time.Now()
	run.CompletedAt = &now
	run.mu.Unlock()

	if m.db != nil {
		if dbErr := m.db.FailRun(ctx, run.ID, err.Error(), counts); dbErr != nil {
			slog.Warn("failed to persist run failure", "run_id", run.ID, "error", dbErr)
		}
	}

	slog.Error("run failed", "run_id", run.ID, "error", err)
}

// Snapshot returns a thread-safe copy of run state.
func (r *Run) Snapshot() Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Run{
		ID:          r.ID,
		Source:      r.Source,
		Table:       r.Table,
		Workers:     r.Workers,
		Status:      r.Status,
		Counts:      r.Counts,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}
