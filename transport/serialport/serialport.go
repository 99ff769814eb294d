// Package serialport adapts a local serial port to the host.Transport
// interface using github.com/goburrow/serial.
//
// ccTalk lines run 9600 baud, 8 data bits, no parity, 1 stop bit;
// Open applies those settings unless overridden.
package serialport

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goburrow/serial"
)

// Default line settings for a ccTalk bus.
const (
	DefaultBaudRate = 9600
	DefaultDataBits = 8
	DefaultStopBits = 1
	DefaultParity   = "N"

	// readTimeout bounds each ReadAvailable call so the engine's await
	// loop stays responsive to cancellation.
	readTimeout = 10 * time.Millisecond
)

// Config configures a serial port transport. Only Address is required.
type Config struct {
	// Address is the port name, e.g. /dev/ttyUSB0 or COM3.
	Address string

	// BaudRate defaults to 9600.
	BaudRate int
	// DataBits defaults to 8.
	DataBits int
	// StopBits defaults to 1.
	StopBits int
	// Parity defaults to "N".
	Parity string
}

// Transport drives a local serial port. It satisfies host.Transport.
type Transport struct {
	port   serial.Port
	buf    []byte
	closed atomic.Bool
}

// Open opens the serial port described by cfg.
func Open(cfg Config) (*Transport, error) {
	if cfg.Address == "" {
		return nil, errors.New("serialport: address is required")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = DefaultDataBits
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = DefaultStopBits
	}
	if cfg.Parity == "" {
		cfg.Parity = DefaultParity
	}

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Address,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", cfg.Address, err)
	}

	return &Transport{
		port: port,
		buf:  make([]byte, 512),
	}, nil
}

// Write transmits the whole frame.
func (t *Transport) Write(data []byte) error {
	if t.closed.Load() {
		return errors.New("serialport: port closed")
	}

	for len(data) > 0 {
		n, err := t.port.Write(data)
		if err != nil {
			return fmt.Errorf("serialport: write: %w", err)
		}
		data = data[n:]
	}

	return nil
}

// ReadAvailable returns the bytes received since the previous call,
// blocking at most the port read timeout. An expired timeout yields an
// empty read, not an error. The returned slice is reused by the next
// call.
func (t *Transport) ReadAvailable() ([]byte, error) {
	if t.closed.Load() {
		return nil, errors.New("serialport: port closed")
	}

	n, err := t.port.Read(t.buf)
	if err != nil {
		if errors.Is(err, serial.ErrTimeout) {
			return nil, nil
		}

		return nil, fmt.Errorf("serialport: read: %w", err)
	}

	return t.buf[:n], nil
}

// Closed reports whether Close has been called.
func (t *Transport) Closed() bool {
	return t.closed.Load()
}

// Close closes the underlying port. Close is idempotent.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	return t.port.Close()
}
