package host

import (
	"context"
	"sync"
	"time"
)

// busArbiter serializes access to the half-duplex line. Callers block
// in acquire until they hold the exclusive turn; turns are granted in
// strict FIFO order of arrival.
type busArbiter struct {
	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}

	// spacing is the minimum quiet gap between turns; lastRelease
	// records when the previous holder let go.
	spacing     time.Duration
	lastRelease time.Time
}

func newBusArbiter(spacing time.Duration) *busArbiter {
	return &busArbiter{spacing: spacing}
}

// acquire blocks until the caller owns the bus turn or ctx is done.
// On success the caller must release the returned turn exactly once.
func (b *busArbiter) acquire(ctx context.Context) (*busTurn, error) {
	b.mu.Lock()
	if !b.busy {
		b.busy = true
		b.mu.Unlock()

		if err := b.waitSpacing(ctx); err != nil {
			b.releaseTurn()
			return nil, err
		}

		return &busTurn{arbiter: b}, nil
	}

	grant := make(chan struct{}, 1)
	b.waiters = append(b.waiters, grant)
	b.mu.Unlock()

	select {
	case <-grant:
	case <-ctx.Done():
		b.mu.Lock()
		for i, w := range b.waiters {
			if w == grant {
				b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
				b.mu.Unlock()

				return nil, ctx.Err()
			}
		}
		b.mu.Unlock()

		// The grant raced with cancellation; we already own the turn,
		// so hand it to the next waiter.
		<-grant
		b.releaseTurn()

		return nil, ctx.Err()
	}

	if err := b.waitSpacing(ctx); err != nil {
		b.releaseTurn()
		return nil, err
	}

	return &busTurn{arbiter: b}, nil
}

// waitSpacing delays the new holder until the configured quiet gap
// since the previous release has elapsed.
func (b *busArbiter) waitSpacing(ctx context.Context) error {
	if b.spacing <= 0 {
		return nil
	}

	b.mu.Lock()
	wait := b.spacing - time.Since(b.lastRelease)
	b.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// releaseTurn passes the turn to the oldest waiter, or marks the bus
// idle when nobody is queued.
func (b *busArbiter) releaseTurn() {
	b.mu.Lock()
	b.lastRelease = time.Now()

	if len(b.waiters) == 0 {
		b.busy = false
		b.mu.Unlock()

		return
	}

	grant := b.waiters[0]
	b.waiters = b.waiters[1:]
	b.mu.Unlock()

	grant <- struct{}{}
}

// busTurn is an exclusive grant of the line. release is idempotent.
type busTurn struct {
	arbiter *busArbiter
	once    sync.Once
}

func (t *busTurn) release() {
	t.once.Do(t.arbiter.releaseTurn)
}
