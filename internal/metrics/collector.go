// Package metrics provides in-memory load statistics collection.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Operation names for timing.
const (
	OpInsert      = "insert"
	OpRetryInsert = "retry_insert"
)

// OperationMetrics holds aggregated timing for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents the load statistics at a point in time.
//
// Success and Failure describe first attempts only, so every submitted row
// lands in exactly one of them. Retry outcomes are tracked separately.
type Snapshot struct {
	UptimeSeconds  float64
	Success        int64
	Failure        int64
	RetrySucceeded int64
	RetryDropped   int64
	Malformed      int64
	Insert         *OperationSnapshot
	RetryInsert    *OperationSnapshot
}

// Delivered returns the number of rows that reached the store on either attempt.
func (s Snapshot) Delivered() int64 {
	return s.Success + s.RetrySucceeded
}

// Resolved returns the number of rows whose first attempt has finished.
func (s Snapshot) Resolved() int64 {
	return s.Success + s.Failure
}

// Collector aggregates load statistics.
// All methods are thread-safe. Counter reads never block writers.
type Collector struct {
	success        atomic.Int64
	failure        atomic.Int64
	retrySucceeded atomic.Int64
	retryDropped   atomic.Int64
	malformed      atomic.Int64

	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

func (c *Collector) IncrementSuccess() { c.success.Add(1) }
func (c *Collector) IncrementFailure() { c.failure.Add(1) }
func (c *Collector) Success() int64    { return c.success.Load() }
func (c *Collector) Failure() int64    { return c.failure.Load() }

// RecordRetrySuccess counts a row that failed once and then made it on retry.
func (c *Collector) RecordRetrySuccess() { c.retrySucceeded.Add(1) }

// RecordRetryDropped counts a row that failed both attempts.
// The failure counter is deliberately left alone.
func (c *Collector) RecordRetryDropped() { c.retryDropped.Add(1) }

// RecordMalformed counts an input record skipped before submission.
func (c *Collector) RecordMalformed() { c.malformed.Add(1) }

func (c *Collector) RetrySucceeded() int64 { return c.retrySucceeded.Load() }
func (c *Collector) RetryDropped() int64   { return c.retryDropped.Load() }
func (c *Collector) Malformed() int64      { return c.malformed.Load() }

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
// Counters are read individually, so a snapshot taken mid-run may straddle
// an in-progress increment.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:  time.Since(c.startTime).Seconds(),
		Success:        c.success.Load(),
		Failure:        c.failure.Load(),
		RetrySucceeded: c.retrySucceeded.Load(),
		RetryDropped:   c.retryDropped.Load(),
		Malformed:      c.malformed.Load(),
		Insert:         snapshotOp(c.ops[OpInsert]),
		RetryInsert:    snapshotOp(c.ops[OpRetryInsert]),
	}
}
