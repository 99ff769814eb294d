package cctalk

import "errors"

var (
	// ErrPayloadTooLarge indicates that a command payload exceeds
	// MaxPayloadSize and cannot be framed.
	ErrPayloadTooLarge = errors.New("cctalk: payload exceeds maximum frame data size")

	// ErrInvalidAddress indicates that a source or destination address
	// is not usable for a host-originated frame (source 0 is reserved
	// for broadcast, and a device cannot address itself).
	ErrInvalidAddress = errors.New("cctalk: invalid source/destination address")

	// ErrIncompleteFrame indicates that the buffer does not yet contain
	// a complete frame. The caller should read more bytes and decode again.
	ErrIncompleteFrame = errors.New("cctalk: incomplete frame")

	// ErrMalformedFrame indicates that the frame's structural fields are
	// inconsistent (e.g. the declared data length exceeds the protocol
	// maximum).
	ErrMalformedFrame = errors.New("cctalk: malformed frame")

	// ErrChecksumMismatch indicates that a structurally complete frame
	// failed checksum verification.
	ErrChecksumMismatch = errors.New("cctalk: checksum mismatch")
)
