// Package loader dispatches input rows to a store through a bounded worker
// pool, retrying each failed write exactly once on a separate goroutine.
package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrIngestionRunning is returned by MarkRetryDrained before ingestion has finished.
var ErrIngestionRunning = errors.New("ingestion still running")

// Lifecycle tracks the two shutdown flags of a load.
// The retry path can only be marked drained once ingestion is done, and the
// load is finished exactly when the retry path is drained.
type Lifecycle struct {
	ingestionDone atomic.Bool
	retryDrained  atomic.Bool

	ingestOnce sync.Once
	drainOnce  sync.Once
	ingestCh   chan struct{}
	drainCh    chan struct{}
}

// NewLifecycle returns a Lifecycle with both flags unset.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		ingestCh: make(chan struct{}),
		drainCh:  make(chan struct{}),
	}
}

// MarkIngestionDone records that no more rows will be submitted.
// Calling it more than once is harmless.
func (l *Lifecycle) MarkIngestionDone() {
	l.ingestOnce.Do(func() {
		l.ingestionDone.Store(true)
		close(l.ingestCh)
	})
}

// IngestionDone reports whether ingestion has finished.
func (l *Lifecycle) IngestionDone() bool {
	return l.ingestionDone.Load()
}

// IngestionSignal is closed when ingestion finishes.
func (l *Lifecycle) IngestionSignal() <-chan struct{} {
	return l.ingestCh
}

// MarkRetryDrained records that every queued retry has been attempted.
func (l *Lifecycle) MarkRetryDrained() error {
	if !l.ingestionDone.Load() {
		return ErrIngestionRunning
	}
	l.drainOnce.Do(func() {
		l.retryDrained.Store(true)
		close(l.drainCh)
	})
	return nil
}

// Finished reports whether the load is complete.
func (l *Lifecycle) Finished() bool {
	return l.retryDrained.Load()
}

// Done is closed when the load is complete.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.drainCh
}

// Wait blocks until the load is complete or ctx is done.
func (l *Lifecycle) Wait(ctx context.Context) error {
	select {
	case <-l.drainCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
