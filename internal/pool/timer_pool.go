// Package pool provides pooled timers for the engine's deadline
// bookkeeping. Every request attempt arms at least one timer, so
// recycling them keeps the per-exchange allocation cost flat.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer armed for duration d, reusing a pooled timer
// when one is available. Return it with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(d)
	}

	t := v.(*time.Timer) //nolint:forcetypeassert // only *time.Timer is pooled
	if t.Reset(d) {
		// Timer was still active; drain a possible stale fire.
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer stops t and returns it to the pool. The timer must not be
// used after the call.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}

	timerPool.Put(t)
}
