package host

// Transport is the byte-oriented duplex channel the engine drives. It
// abstracts the physical or bridged serial line (see the
// transport/serialport and transport/netconn adapters).
//
// The engine is the only component that touches the Transport, and only
// while holding the bus turn, so implementations do not need to be
// goroutine-safe. The engine never reopens a transport: once Closed
// reports true (or Write/ReadAvailable return an error), the engine
// fails the current call and the owner of the Transport must establish
// a fresh one.
type Transport interface {
	// Write sends data to the line. It must either enqueue all bytes or
	// return an error; implementations handle partial writes internally.
	Write(data []byte) error

	// ReadAvailable returns the bytes currently available, possibly
	// none. It may block briefly but must not wait for a full frame.
	// The returned slice is only valid until the next call.
	ReadAvailable() ([]byte, error)

	// Closed reports whether the channel is no longer usable.
	Closed() bool
}
