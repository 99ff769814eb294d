// Package task manages the lifecycle of the engine's background
// goroutines (poll loops). It gives each loop a shared cancellation
// context and a way to wait for clean termination, so a loop is never
// abandoned mid bus exchange.
package task

import (
	"context"
	"sync"

	"github.com/payware/go-cctalk/logger"
)

// Func is one iteration of a managed loop. It returns true to keep the
// loop running, false to stop the goroutine.
type Func func() bool

// Runner runs named background loops tied to a shared context.
// Stopping the runner cancels the context; each loop observes the
// cancellation at its next iteration boundary and exits, and Wait
// blocks until all loops have finished.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
}

// NewRunner creates a Runner whose loops are cancelled when ctx is
// cancelled or Stop is called.
func NewRunner(ctx context.Context, l logger.Logger) *Runner {
	r := &Runner{logger: l}
	r.ctx, r.cancel = context.WithCancel(ctx)

	return r
}

// Context returns the runner's cancellation context. Loop bodies may
// use it for blocking operations between iterations.
func (r *Runner) Context() context.Context {
	return r.ctx
}

// Start launches a managed loop. fn is called repeatedly until it
// returns false or the runner is stopped.
func (r *Runner) Start(name string, fn Func) {
	r.logger.Debug("task: start", "name", name)

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer r.logger.Debug("task: stopped", "name", name)

		for {
			select {
			case <-r.ctx.Done():
				return
			default:
			}

			if !fn() {
				return
			}
		}
	}()
}

// Stop cancels all managed loops. It does not wait for them to exit.
func (r *Runner) Stop() {
	r.cancel()
}

// Wait blocks until every managed loop has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}
