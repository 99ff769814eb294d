// Package netconn adapts a net.Conn to the host.Transport interface,
// for ccTalk buses reached through a serial device server or any other
// stream bridge.
package netconn

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// readTimeout bounds each ReadAvailable call so the engine's await
// loop stays responsive to cancellation.
const readTimeout = 10 * time.Millisecond

// Transport drives a stream connection. It satisfies host.Transport.
type Transport struct {
	conn   net.Conn
	buf    []byte
	closed atomic.Bool
}

// New wraps an established connection. The caller keeps ownership of
// dialing; Close closes the connection.
func New(conn net.Conn) *Transport {
	return &Transport{
		conn: conn,
		buf:  make([]byte, 512),
	}
}

// Write transmits the whole frame.
func (t *Transport) Write(data []byte) error {
	if t.closed.Load() {
		return errors.New("netconn: connection closed")
	}

	for len(data) > 0 {
		n, err := t.conn.Write(data)
		if err != nil {
			return fmt.Errorf("netconn: write: %w", err)
		}
		data = data[n:]
	}

	return nil
}

// ReadAvailable returns the bytes received since the previous call,
// blocking at most a short read deadline. An expired deadline yields
// an empty read, not an error. The returned slice is reused by the
// next call.
func (t *Transport) ReadAvailable() ([]byte, error) {
	if t.closed.Load() {
		return nil, errors.New("netconn: connection closed")
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return nil, fmt.Errorf("netconn: set read deadline: %w", err)
	}

	n, err := t.conn.Read(t.buf)
	if n > 0 {
		return t.buf[:n], nil
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, nil
		}

		return nil, fmt.Errorf("netconn: read: %w", err)
	}

	return nil, nil
}

// Closed reports whether Close has been called.
func (t *Transport) Closed() bool {
	return t.closed.Load()
}

// Close closes the underlying connection. Close is idempotent.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	return t.conn.Close()
}
