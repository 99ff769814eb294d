package host

import "errors"

var (
	// ErrTimeout indicates that no complete reply arrived within the
	// per-attempt timeout, after all configured retransmissions.
	ErrTimeout = errors.New("host: reply timeout")

	// ErrTransport indicates a read or write failure on the transport.
	// The current call is not retried; the caller must re-establish the
	// transport before issuing further requests.
	ErrTransport = errors.New("host: transport error")

	// ErrTransportClosed indicates the transport reported itself closed.
	ErrTransportClosed = errors.New("host: transport closed")

	// ErrHostClosed indicates the engine has been closed.
	ErrHostClosed = errors.New("host: engine closed")
)
