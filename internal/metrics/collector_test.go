package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrentIncrements(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncrementSuccess()
				if j%10 == 0 {
					c.IncrementFailure()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5000), c.Success())
	assert.Equal(t, int64(500), c.Failure())
}

func TestSnapshotCounters(t *testing.T) {
	c := NewCollector()
	c.IncrementSuccess()
	c.IncrementSuccess()
	c.IncrementFailure()
	c.RecordRetrySuccess()
	c.RecordMalformed()

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.Success)
	assert.Equal(t, int64(1), snap.Failure)
	assert.Equal(t, int64(1), snap.RetrySucceeded)
	assert.Equal(t, int64(0), snap.RetryDropped)
	assert.Equal(t, int64(1), snap.Malformed)
	assert.Equal(t, int64(3), snap.Resolved())
	assert.Equal(t, int64(3), snap.Delivered())
}

func TestRetryDroppedLeavesFailureAlone(t *testing.T) {
	c := NewCollector()
	c.IncrementFailure()
	c.RecordRetryDropped()

	assert.Equal(t, int64(1), c.Failure())
	assert.Equal(t, int64(1), c.RetryDropped())
}

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	assert.Nil(t, c.Snapshot().Insert, "no timing before first record")

	c.RecordTiming(OpInsert, 10*time.Millisecond)
	c.RecordTiming(OpInsert, 30*time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.Insert)
	assert.Equal(t, int64(2), snap.Insert.Count)
	assert.Equal(t, int64(40), snap.Insert.TotalTimeMs)
	assert.Equal(t, int64(10), snap.Insert.MinTimeMs)
	assert.Equal(t, int64(30), snap.Insert.MaxTimeMs)
	assert.InDelta(t, 20.0, snap.Insert.AvgTimeMs, 0.001)
	assert.Nil(t, snap.RetryInsert)
}
