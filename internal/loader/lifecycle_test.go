package loader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleOrdering(t *testing.T) {
	lc := NewLifecycle()
	assert.False(t, lc.IngestionDone())
	assert.False(t, lc.Finished())

	err := lc.MarkRetryDrained()
	assert.ErrorIs(t, err, ErrIngestionRunning)
	assert.False(t, lc.Finished(), "drained must not be set before ingestion is done")

	lc.MarkIngestionDone()
	assert.True(t, lc.IngestionDone())
	assert.False(t, lc.Finished())
	waitClosed(t, lc.IngestionSignal(), "ingestion signal not closed")

	require.NoError(t, lc.MarkRetryDrained())
	assert.True(t, lc.Finished())
	waitClosed(t, lc.Done(), "done not closed")
}

func TestLifecycleIdempotent(t *testing.T) {
	lc := NewLifecycle()
	lc.MarkIngestionDone()
	lc.MarkIngestionDone()
	require.NoError(t, lc.MarkRetryDrained())
	require.NoError(t, lc.MarkRetryDrained())
	assert.True(t, lc.Finished())
}

func TestLifecycleWait(t *testing.T) {
	lc := NewLifecycle()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, lc.Wait(ctx), context.DeadlineExceeded)

	go func() {
		lc.MarkIngestionDone()
		_ = lc.MarkRetryDrained()
	}()
	assert.NoError(t, lc.Wait(context.Background()))
}

func TestLifecycleConcurrentObservers(t *testing.T) {
	lc := NewLifecycle()
	violations := make(chan struct{}, 1)
	stop := make(chan struct{})

	// observers must never see drained without ingestion done
	for range 4 {
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
				}
				drained := lc.Finished()
				if drained && !lc.IngestionDone() {
					select {
					case violations <- struct{}{}:
					default:
					}
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	lc.MarkIngestionDone()
	require.NoError(t, lc.MarkRetryDrained())
	time.Sleep(5 * time.Millisecond)
	close(stop)

	assert.Empty(t, violations)
}
