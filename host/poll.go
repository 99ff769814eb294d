package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/payware/go-cctalk/cctalk"
	"github.com/payware/go-cctalk/internal/pool"
)

// DeviceState is the liveness classification of a polled device.
type DeviceState int

const (
	// StateUnknown means the device has not completed a poll round yet.
	StateUnknown DeviceState = iota
	// StateAlive means the device answered its most recent poll.
	StateAlive
	// StateUnresponsive means the device missed FailureThreshold
	// consecutive polls.
	StateUnresponsive
)

func (s DeviceState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAlive:
		return "alive"
	case StateUnresponsive:
		return "unresponsive"
	default:
		return fmt.Sprintf("DeviceState(%d)", int(s))
	}
}

// DeviceRecord is the tracked status of one polled device.
type DeviceRecord struct {
	Address             cctalk.Address
	State               DeviceState
	ConsecutiveFailures int
	LastSeen            time.Time
}

// PollConfig configures a poll loop.
type PollConfig struct {
	// Addresses are the device addresses polled round-robin.
	Addresses []cctalk.Address

	// Interval is the pause between poll rounds.
	Interval time.Duration

	// DeviceSpacing is an optional pause between consecutive devices
	// within a round, leaving the bus free for ad-hoc commands.
	DeviceSpacing time.Duration

	// FailureThreshold is the number of consecutive missed polls after
	// which a device is marked unresponsive.
	FailureThreshold int
}

// Default poll loop settings.
const (
	DefaultPollInterval     = time.Second
	DefaultFailureThreshold = 3
)

func (cfg *PollConfig) normalize() error {
	if len(cfg.Addresses) == 0 {
		return errors.New("host: poll config needs at least one address")
	}
	for _, addr := range cfg.Addresses {
		if addr == cctalk.BroadcastAddress {
			return errors.New("host: poll config must not target the broadcast address (0)")
		}
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Interval < 0 {
		return fmt.Errorf("host: poll interval %v must not be negative", cfg.Interval)
	}
	if cfg.DeviceSpacing < 0 {
		return fmt.Errorf("host: device spacing %v must not be negative", cfg.DeviceSpacing)
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.FailureThreshold < 1 {
		return fmt.Errorf("host: failure threshold %d must be at least 1", cfg.FailureThreshold)
	}

	return nil
}

// PollHandle controls one running poll loop and exposes its device
// records.
type PollHandle struct {
	host   *Host
	cfg    PollConfig
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	records *xsync.MapOf[cctalk.Address, DeviceRecord]
}

// StartPollLoop starts a background loop that sends a simple poll to
// each configured address in order, once per interval, and tracks
// liveness transitions. Poll exchanges share the bus arbiter with
// SendCommand calls, so polling never interleaves with command
// traffic on the wire.
func (h *Host) StartPollLoop(cfg PollConfig) (*PollHandle, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHostClosed
	}

	p := &PollHandle{
		host:    h,
		cfg:     cfg,
		done:    make(chan struct{}),
		records: xsync.NewMapOf[cctalk.Address, DeviceRecord](),
	}
	p.ctx, p.cancel = context.WithCancel(h.runner.Context())

	for _, addr := range cfg.Addresses {
		p.records.Store(addr, DeviceRecord{Address: addr, State: StateUnknown})
	}

	h.polls = append(h.polls, p)
	h.mu.Unlock()

	h.runner.Start(fmt.Sprintf("pollLoop(%d devices)", len(cfg.Addresses)), func() bool {
		p.loop()
		return false
	})

	return p, nil
}

// loop runs poll rounds until the handle is stopped.
func (p *PollHandle) loop() {
	defer close(p.done)

	for {
		if p.ctx.Err() != nil {
			return
		}

		p.round()
		p.host.metrics.incPollRounds()

		if err := sleepPoll(p.ctx, p.cfg.Interval); err != nil {
			return
		}
	}
}

// round polls every configured address once.
func (p *PollHandle) round() {
	for i, addr := range p.cfg.Addresses {
		if p.ctx.Err() != nil {
			return
		}
		if i > 0 && p.cfg.DeviceSpacing > 0 {
			if err := sleepPoll(p.ctx, p.cfg.DeviceSpacing); err != nil {
				return
			}
		}

		_, err := p.host.SendCommand(p.ctx, addr, cctalk.SimplePoll())
		switch {
		case err == nil:
			p.recordSuccess(addr)
		case errors.Is(err, context.Canceled), errors.Is(err, ErrHostClosed):
			return
		default:
			p.recordFailure(addr, err)
		}
	}
}

func (p *PollHandle) recordSuccess(addr cctalk.Address) {
	rec, _ := p.records.Load(addr)
	prev := rec.State

	rec.Address = addr
	rec.State = StateAlive
	rec.ConsecutiveFailures = 0
	rec.LastSeen = time.Now()
	p.records.Store(addr, rec)

	if prev != StateAlive {
		p.host.logger.Info("device alive", "address", addr, "previousState", prev.String())
	}
}

func (p *PollHandle) recordFailure(addr cctalk.Address, cause error) {
	rec, _ := p.records.Load(addr)
	rec.Address = addr
	rec.ConsecutiveFailures++

	if rec.ConsecutiveFailures >= p.cfg.FailureThreshold && rec.State != StateUnresponsive {
		rec.State = StateUnresponsive
		p.host.logger.Warn("device unresponsive",
			"address", addr, "consecutiveFailures", rec.ConsecutiveFailures, "cause", cause)
	}

	p.records.Store(addr, rec)
}

// DeviceStatus returns the record for one polled address.
func (p *PollHandle) DeviceStatus(addr cctalk.Address) (DeviceRecord, bool) {
	return p.records.Load(addr)
}

// Snapshot returns a copy of every device record.
func (p *PollHandle) Snapshot() map[cctalk.Address]DeviceRecord {
	out := make(map[cctalk.Address]DeviceRecord, len(p.cfg.Addresses))
	p.records.Range(func(addr cctalk.Address, rec DeviceRecord) bool {
		out[addr] = rec
		return true
	})

	return out
}

// Stop terminates the poll loop and waits for the current round to
// finish. Stop is idempotent.
func (p *PollHandle) Stop() {
	p.cancel()
	<-p.done
}

// markStopped cancels the loop without waiting; Host.Close waits via
// the task runner.
func (p *PollHandle) markStopped() {
	p.cancel()
}

func sleepPoll(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := pool.GetTimer(d)
	defer pool.PutTimer(t)

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
