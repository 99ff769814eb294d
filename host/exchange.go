package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/payware/go-cctalk/cctalk"
	"github.com/payware/go-cctalk/internal/pool"
	"github.com/payware/go-cctalk/logger"
)

// exchanger performs a single request/reply exchange on the line: it
// writes the encoded frame, accumulates transport reads until a
// complete reply decodes, and retransmits the identical bytes on
// retryable failures. The caller must hold the bus turn for the whole
// lifetime of the exchange.
type exchanger struct {
	transport   Transport
	checksum    cctalk.ChecksumType
	hostAddress cctalk.Address
	localEcho   bool
	metrics     *Metrics
	logger      logger.Logger
}

// run executes the exchange described by params. dest identifies the
// addressed device; frame holds the encoded request bytes. It returns
// the decoded reply, or the error of the last attempt.
func (e *exchanger) run(ctx context.Context, dest cctalk.Address, frame []byte, params sendParams) (*cctalk.Reply, error) {
	attempts := params.maxRetries + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			e.metrics.incRetransmissions()
			e.logger.Debug("retransmitting request",
				"destination", dest, "attempt", attempt+1, "cause", lastErr)

			if params.retry.Delay > 0 {
				if err := sleepCtx(ctx, params.retry.Delay); err != nil {
					return nil, err
				}
			}
		}

		reply, err := e.attempt(ctx, dest, frame, params.timeout)
		if err == nil {
			e.metrics.incRepliesReceived()
			return reply, nil
		}
		lastErr = err

		if !e.retryable(err, params.retry) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// attempt writes the frame once and awaits one complete reply within
// the per-attempt timeout. The write always runs to completion; the
// context is only honored while waiting for bytes.
func (e *exchanger) attempt(ctx context.Context, dest cctalk.Address, frame []byte, timeout time.Duration) (*cctalk.Reply, error) {
	if e.transport.Closed() {
		return nil, ErrTransportClosed
	}

	// A reply that arrived after a previous attempt's deadline is still
	// sitting in the transport; it must never be paired with this
	// request.
	if err := e.flush(); err != nil {
		return nil, err
	}

	if err := e.transport.Write(frame); err != nil {
		e.metrics.incTransportErrors()
		return nil, fmt.Errorf("%w: write failed: %v", ErrTransport, err)
	}
	e.metrics.incFramesSent()

	deadline := time.Now().Add(timeout)

	var (
		buf  []byte
		echo int
	)
	if e.localEcho {
		echo = len(frame)
	}

	for {
		chunk, err := e.transport.ReadAvailable()
		if err != nil {
			if e.transport.Closed() {
				return nil, ErrTransportClosed
			}
			e.metrics.incTransportErrors()

			return nil, fmt.Errorf("%w: read failed: %v", ErrTransport, err)
		}

		// On a two-wire bus the host reads back its own transmission;
		// discard it before reply decoding starts.
		if echo > 0 && len(chunk) > 0 {
			if len(chunk) <= echo {
				echo -= len(chunk)
				chunk = nil
			} else {
				chunk = chunk[echo:]
				echo = 0
			}
		}

		if len(chunk) > 0 {
			buf = append(buf, chunk...)

			for {
				f, consumed, err := cctalk.Decode(buf, e.checksum)
				if errors.Is(err, cctalk.ErrIncompleteFrame) {
					break
				}
				if err != nil {
					e.metrics.incChecksumFailures()
					return nil, err
				}

				// A valid frame addressed to another party is line
				// traffic, not our reply.
				if e.checksum == cctalk.ChecksumSum8 && f.Destination != e.hostAddress {
					e.logger.Debug("discarding frame for another address",
						"destination", f.Destination, "source", f.Source)
					buf = buf[consumed:]

					continue
				}

				reply := &cctalk.Reply{Source: dest, Header: f.Header, Data: f.Data}
				if e.checksum == cctalk.ChecksumSum8 {
					reply.Source = f.Source
				}

				return reply, nil
			}
		}

		if time.Now().After(deadline) {
			e.metrics.incTimeouts()
			return nil, fmt.Errorf("%w: no reply from device %d within %v", ErrTimeout, dest, timeout)
		}

		if err := e.idle(ctx, deadline); err != nil {
			return nil, err
		}
	}
}

// flush drains bytes the transport accumulated before this attempt,
// typically a late reply from a timed-out exchange.
func (e *exchanger) flush() error {
	for {
		chunk, err := e.transport.ReadAvailable()
		if err != nil {
			if e.transport.Closed() {
				return ErrTransportClosed
			}
			e.metrics.incTransportErrors()

			return fmt.Errorf("%w: read failed: %v", ErrTransport, err)
		}
		if len(chunk) == 0 {
			return nil
		}

		e.logger.Debug("discarding stale bytes", "count", len(chunk))
	}
}

// idle sleeps briefly between empty reads, honoring cancellation and
// never past the attempt deadline.
func (e *exchanger) idle(ctx context.Context, deadline time.Time) error {
	wait := readPollInterval
	if remain := time.Until(deadline); remain < wait {
		wait = remain
	}
	if wait <= 0 {
		return nil
	}

	t := pool.GetTimer(wait)
	defer pool.PutTimer(t)

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryable classifies an attempt failure. Transport failures and
// cancellation are terminal; timeouts and corrupt replies retry per
// policy.
func (e *exchanger) retryable(err error, policy RetryPolicy) bool {
	switch {
	case errors.Is(err, ErrTimeout):
		return policy.OnTimeout
	case errors.Is(err, cctalk.ErrChecksumMismatch), errors.Is(err, cctalk.ErrMalformedFrame):
		return policy.OnChecksumFailure
	default:
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := pool.GetTimer(d)
	defer pool.PutTimer(t)

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
