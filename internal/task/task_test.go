package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/payware/go-cctalk/logger"
)

func TestRunner_StopTerminatesLoop(t *testing.T) {
	r := NewRunner(context.Background(), logger.GetLogger())

	var iterations atomic.Int64
	r.Start("counter", func() bool {
		iterations.Add(1)
		time.Sleep(time.Millisecond)

		return true
	})

	time.Sleep(20 * time.Millisecond)
	r.Stop()
	r.Wait()

	n := iterations.Load()
	assert.Positive(t, n)

	// No further iterations after Wait returns.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, iterations.Load())
}

func TestRunner_LoopSelfStops(t *testing.T) {
	r := NewRunner(context.Background(), logger.GetLogger())

	var iterations atomic.Int64
	r.Start("once", func() bool {
		iterations.Add(1)

		return false
	})

	r.Wait()
	assert.Equal(t, int64(1), iterations.Load())
}

func TestRunner_ParentContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(ctx, logger.GetLogger())

	r.Start("loop", func() bool {
		time.Sleep(time.Millisecond)

		return true
	})

	cancel()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after parent context cancellation")
	}
}
