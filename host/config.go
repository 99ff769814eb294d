package host

import (
	"errors"
	"fmt"
	"time"

	"github.com/payware/go-cctalk/cctalk"
	"github.com/payware/go-cctalk/logger"
)

// Default engine settings.
const (
	// DefaultTimeout is the default per-attempt reply timeout. ccTalk
	// devices answer within tens of milliseconds at 9600 baud; the
	// default leaves ample slack for bridged transports.
	DefaultTimeout = 500 * time.Millisecond

	// DefaultMaxRetries is the default number of retransmissions after
	// a failed attempt (so a call makes at most 1+DefaultMaxRetries
	// write attempts).
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the default pause between a failed attempt
	// and its retransmission.
	DefaultRetryDelay = 0 * time.Millisecond
)

// Validation limits.
const (
	MinTimeout = time.Millisecond
	MaxTimeout = 30 * time.Second

	MaxRetryLimit = 31

	MaxBusSpacing = 5 * time.Second
	MaxRetryDelay = 5 * time.Second
)

// readPollInterval is how long the correlator sleeps between empty
// transport reads while awaiting a reply.
const readPollInterval = 2 * time.Millisecond

// RetryPolicy controls which transient failures trigger retransmission
// of the identical frame. Transport failures are never retried.
type RetryPolicy struct {
	// OnTimeout retransmits after an attempt expires with no complete
	// reply. Enabled by default.
	OnTimeout bool

	// OnChecksumFailure retransmits after a corrupt (checksum mismatch
	// or malformed) reply. Enabled by default.
	OnChecksumFailure bool

	// Delay is an optional pause before each retransmission.
	Delay time.Duration
}

// Config holds the engine configuration. Construct it through New with
// functional options.
type Config struct {
	hostAddress cctalk.Address
	checksum    cctalk.ChecksumType

	timeout    time.Duration
	maxRetries int
	retry      RetryPolicy

	localEcho  bool
	busSpacing time.Duration

	logger logger.Logger
}

func newConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		hostAddress: cctalk.HostAddress,
		checksum:    cctalk.ChecksumSum8,
		timeout:     DefaultTimeout,
		maxRetries:  DefaultMaxRetries,
		retry: RetryPolicy{
			OnTimeout:         true,
			OnChecksumFailure: true,
			Delay:             DefaultRetryDelay,
		},
		logger: logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// HostAddress returns the configured source address of the engine.
func (cfg *Config) HostAddress() cctalk.Address { return cfg.hostAddress }

// Checksum returns the configured frame checksum type.
func (cfg *Config) Checksum() cctalk.ChecksumType { return cfg.checksum }

// Timeout returns the per-attempt reply timeout.
func (cfg *Config) Timeout() time.Duration { return cfg.timeout }

// MaxRetries returns the retransmission bound per call.
func (cfg *Config) MaxRetries() int { return cfg.maxRetries }

// LocalEcho reports whether the engine strips its own echoed frames.
func (cfg *Config) LocalEcho() bool { return cfg.localEcho }

// BusSpacing returns the quiet gap enforced between bus turns.
func (cfg *Config) BusSpacing() time.Duration { return cfg.busSpacing }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// --- Option ---

// Option is a functional option for configuring the engine.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithHostAddress sets the engine's own bus address (the source field
// of every request). The address must be in [1, 255]; 0 is the
// reserved broadcast address.
func WithHostAddress(addr cctalk.Address) Option {
	return optFunc(func(cfg *Config) error {
		if addr == cctalk.BroadcastAddress {
			return errors.New("host: host address must not be the broadcast address (0)")
		}
		cfg.hostAddress = addr

		return nil
	})
}

// WithChecksum selects the frame checksum algorithm. The choice is
// per-bus: all devices on the line must use the same framing.
func WithChecksum(t cctalk.ChecksumType) Option {
	return optFunc(func(cfg *Config) error {
		if !t.Valid() {
			return fmt.Errorf("host: unknown checksum type %d", t)
		}
		cfg.checksum = t

		return nil
	})
}

// WithTimeout sets the per-attempt reply timeout. The overall latency
// bound of a call is timeout × (maxRetries + 1), plus any retry delay.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("host: timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.timeout = d

		return nil
	})
}

// WithMaxRetries sets the number of retransmissions after a failed
// attempt. Must be in [0, MaxRetryLimit].
func WithMaxRetries(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > MaxRetryLimit {
			return fmt.Errorf("host: max retries %d out of range [0, %d]", n, MaxRetryLimit)
		}
		cfg.maxRetries = n

		return nil
	})
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return optFunc(func(cfg *Config) error {
		if p.Delay < 0 || p.Delay > MaxRetryDelay {
			return fmt.Errorf("host: retry delay %v out of range [0, %v]", p.Delay, MaxRetryDelay)
		}
		cfg.retry = p

		return nil
	})
}

// WithLocalEcho enables consumption of the engine's own transmitted
// bytes before reply decoding. Required on two-wire buses where the
// host's UART sees its own transmission; leave disabled for bridged
// transports that suppress the echo.
func WithLocalEcho(enabled bool) Option {
	return optFunc(func(cfg *Config) error {
		cfg.localEcho = enabled

		return nil
	})
}

// WithBusSpacing enforces a quiet gap between the end of one exchange
// and the start of the next, for devices that need line settle time.
func WithBusSpacing(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxBusSpacing {
			return fmt.Errorf("host: bus spacing %v out of range [0, %v]", d, MaxBusSpacing)
		}
		cfg.busSpacing = d

		return nil
	})
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("host: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// --- SendOption ---

// sendParams are the per-call settings of one SendCommand invocation,
// seeded from the engine Config.
type sendParams struct {
	timeout    time.Duration
	maxRetries int
	retry      RetryPolicy
}

func (cfg *Config) sendParams() sendParams {
	return sendParams{
		timeout:    cfg.timeout,
		maxRetries: cfg.maxRetries,
		retry:      cfg.retry,
	}
}

// SendOption overrides engine defaults for a single SendCommand call.
type SendOption func(*sendParams)

// WithSendTimeout overrides the per-attempt timeout for this call.
func WithSendTimeout(d time.Duration) SendOption {
	return func(p *sendParams) { p.timeout = d }
}

// WithSendRetries overrides the retransmission bound for this call.
func WithSendRetries(n int) SendOption {
	return func(p *sendParams) { p.maxRetries = n }
}

// WithNoRetry disables retransmission for this call. Intended for
// non-idempotent device commands (dispense, payout) where a duplicated
// frame could duplicate the effect.
func WithNoRetry() SendOption {
	return func(p *sendParams) { p.maxRetries = 0 }
}
