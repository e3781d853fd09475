package loader

import (
	"sync"
	"time"

	"github.com/raphaelgruber/rowloader/internal/models"
)

// RetryQueue is an unbounded FIFO of rows whose first write failed.
// Any number of goroutines may push and poll concurrently.
type RetryQueue struct {
	mu     sync.Mutex
	items  []models.Row
	notify chan struct{}
}

// NewRetryQueue returns an empty queue.
func NewRetryQueue() *RetryQueue {
	return &RetryQueue{notify: make(chan struct{}, 1)}
}

// Push appends row. It never blocks.
func (q *RetryQueue) Push(row models.Row) {
	q.mu.Lock()
	q.items = append(q.items, row)
	q.mu.Unlock()
	q.signal()
}

// Poll removes and returns the oldest row, waiting up to timeout for one to
// arrive. The boolean is false if the timeout expired with the queue empty.
func (q *RetryQueue) Poll(timeout time.Duration) (models.Row, bool) {
	if row, ok := q.pop(); ok {
		return row, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			if row, ok := q.pop(); ok {
				return row, true
			}
		case <-timer.C:
			return q.pop()
		}
	}
}

// DrainAll removes and returns every queued row in FIFO order.
func (q *RetryQueue) DrainAll() []models.Row {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	select {
	case <-q.notify:
	default:
	}
	return items
}

// Len returns the number of queued rows.
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *RetryQueue) pop() (models.Row, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return models.Row{}, false
	}
	row := q.items[0]
	q.items[0] = models.Row{}
	q.items = q.items[1:]
	remaining := len(q.items)
	if remaining == 0 {
		q.items = nil
	}
	q.mu.Unlock()

	// pass the wakeup on to another poller
	if remaining > 0 {
		q.signal()
	}
	return row, true
}

func (q *RetryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
