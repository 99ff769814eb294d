package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/payware/go-cctalk/cctalk"
	"github.com/payware/go-cctalk/internal/task"
	"github.com/payware/go-cctalk/logger"
)

// Host is a ccTalk bus master. It owns the transport, serializes all
// exchanges through a FIFO bus arbiter, and optionally runs poll loops
// that track device liveness.
//
// A Host is safe for concurrent use; concurrent SendCommand calls are
// queued and executed one at a time.
type Host struct {
	cfg       *Config
	transport Transport
	bus       *busArbiter
	exchanger *exchanger
	metrics   *Metrics
	logger    logger.Logger

	runner *task.Runner

	mu     sync.Mutex
	closed bool
	polls  []*PollHandle
}

// New creates a Host driving the given transport.
func New(transport Transport, opts ...Option) (*Host, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: transport must not be nil", ErrTransport)
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	metrics := &Metrics{}
	h := &Host{
		cfg:       cfg,
		transport: transport,
		bus:       newBusArbiter(cfg.busSpacing),
		metrics:   metrics,
		logger:    cfg.logger,
		runner:    task.NewRunner(context.Background(), cfg.logger),
	}
	h.exchanger = &exchanger{
		transport:   transport,
		checksum:    cfg.checksum,
		hostAddress: cfg.hostAddress,
		localEcho:   cfg.localEcho,
		metrics:     metrics,
		logger:      cfg.logger,
	}

	return h, nil
}

// SendCommand sends cmd to the device at dest and waits for its reply.
// The call blocks until the reply arrives, every retransmission is
// exhausted, ctx is cancelled, or the transport fails. Cancellation
// never truncates an in-flight write; it takes effect while waiting
// and before any retransmission.
func (h *Host) SendCommand(ctx context.Context, dest cctalk.Address, cmd cctalk.Command, opts ...SendOption) (*cctalk.Reply, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHostClosed
	}
	h.mu.Unlock()

	params := h.cfg.sendParams()
	for _, opt := range opts {
		opt(&params)
	}

	frame, err := cctalk.Encode(dest, h.cfg.hostAddress, cmd, h.cfg.checksum)
	if err != nil {
		return nil, err
	}

	turn, err := h.bus.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer turn.release()

	h.logger.Debug("sending command",
		"destination", dest, "header", cmd.Header.String(), "dataLen", len(cmd.Data))

	reply, err := h.exchanger.run(ctx, dest, frame, params)
	if err != nil {
		h.logger.Debug("command failed", "destination", dest, "error", err)
		return nil, err
	}

	return reply, nil
}

// Metrics returns the engine counters.
func (h *Host) Metrics() *Metrics { return h.metrics }

// Close rejects further sends and blocks until all poll loops have
// stopped. An ad-hoc SendCommand already holding the bus turn runs to
// completion in its own goroutine; Close does not wait for it. Closing
// the underlying transport is the caller's job.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	polls := h.polls
	h.polls = nil
	h.mu.Unlock()

	for _, p := range polls {
		p.markStopped()
	}
	h.runner.Stop()
	h.runner.Wait()

	h.logger.Debug("host closed")

	return nil
}
