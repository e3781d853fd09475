package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Load run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// LoadRun represents a persisted record of one load invocation.
type LoadRun struct {
	ID             surrealmodels.RecordID `json:"id"`
	Source         string                 `json:"source"`
	Table          string                 `json:"table"`
	Status         string                 `json:"status"`
	Workers        int                    `json:"workers"`
	Success        int64                  `json:"success"`
	Failure        int64                  `json:"failure"`
	RetrySucceeded int64                  `json:"retry_succeeded"`
	RetryDropped   int64                  `json:"retry_dropped"`
	Malformed      int64                  `json:"malformed"`
	Error          *string                `json:"error,omitempty"`
	StartedAt      time.Time              `json:"started_at"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
}

// RunCounts are the outcome counters stored on a load run.
type RunCounts struct {
	Success        int64 `json:"success"`
	Failure        int64 `json:"failure"`
	RetrySucceeded int64 `json:"retry_succeeded"`
	RetryDropped   int64 `json:"retry_dropped"`
	Malformed      int64 `json:"malformed"`
}

// Delivered is the number of rows that reached the store.
func (c RunCounts) Delivered() int64 {
	return c.Success + c.RetrySucceeded
}
