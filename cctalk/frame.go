package cctalk

import "fmt"

// Field offsets within a ccTalk frame.
const (
	DestinationOffset = 0
	LengthOffset      = 1
	SourceOffset      = 2
	HeaderOffset      = 3
	DataOffset        = 4
)

// MaxPayloadSize is the maximum number of data bytes in a standard frame.
const MaxPayloadSize = 252

// frameOverhead is the number of non-data bytes: destination, length,
// source, header and the trailing checksum byte.
const frameOverhead = 5

// MaxFrameSize is the largest possible wire frame.
const MaxFrameSize = frameOverhead + MaxPayloadSize

// Address identifies a device on the bus. Addresses 1–255 name a single
// device; BroadcastAddress (0) addresses every attached device and is
// only meaningful for MDCES commands such as AddressPoll.
type Address uint8

// BroadcastAddress is the reserved all-devices destination.
const BroadcastAddress Address = 0

// HostAddress is the conventional bus address of the host (master).
const HostAddress Address = 1

// Command is a ccTalk command: a header byte plus an opaque data
// payload. Commands are immutable once constructed; the engine
// retransmits the framed bytes verbatim on retry.
type Command struct {
	Header Header
	Data   []byte
}

// NewCommand creates a command with the given header and payload.
// The payload is copied.
func NewCommand(h Header, data []byte) Command {
	var d []byte
	if len(data) > 0 {
		d = make([]byte, len(data))
		copy(d, data)
	}

	return Command{Header: h, Data: d}
}

// SimplePoll returns the liveness-check command. A timeout on this
// command indicates a faulty or missing device, or a wrong address or
// baud rate.
func SimplePoll() Command { return Command{Header: HeaderSimplePoll} }

// RequestManufacturerID returns the manufacturer identity command.
func RequestManufacturerID() Command { return Command{Header: HeaderRequestManufacturerID} }

// RequestEquipmentCategoryID returns the category identity command.
func RequestEquipmentCategoryID() Command { return Command{Header: HeaderRequestEquipmentCategoryID} }

// RequestProductCode returns the product code command.
func RequestProductCode() Command { return Command{Header: HeaderRequestProductCode} }

// RequestSerialNumber returns the serial number command.
func RequestSerialNumber() Command { return Command{Header: HeaderRequestSerialNumber} }

// RequestSoftwareRevision returns the software revision command.
func RequestSoftwareRevision() Command { return Command{Header: HeaderRequestSoftwareRevision} }

// ResetDevice returns the device soft-reset command.
func ResetDevice() Command { return Command{Header: HeaderResetDevice} }

// Frame is a decoded wire frame. It is a transient value: the codec
// produces it from a byte buffer and the engine consumes it immediately.
type Frame struct {
	Destination Address
	Source      Address
	Header      Header
	Data        []byte
}

// Reply converts a device frame into the caller-facing Reply value.
func (f *Frame) Reply() *Reply {
	return &Reply{Source: f.Source, Header: f.Header, Data: f.Data}
}

// Reply is the checksum-verified response of one addressed device to
// one host request.
type Reply struct {
	Source Address
	Header Header
	Data   []byte
}

// IsACK reports whether the reply is a normal acknowledgement
// (return header 0).
func (r *Reply) IsACK() bool { return r.Header == HeaderReply }

// IsNACK reports whether the device rejected the command.
func (r *Reply) IsNACK() bool { return r.Header == HeaderNACK }

// IsBusy reports whether the device deferred the command.
func (r *Reply) IsBusy() bool { return r.Header == HeaderBusy }

// Encode builds the wire frame for a command addressed from src to dest.
//
// It fails with ErrPayloadTooLarge if the command payload exceeds
// MaxPayloadSize, and with ErrInvalidAddress if src is the broadcast
// address (a host must have its own address) or src equals dest.
// Encode is deterministic and has no side effects.
func Encode(dest, src Address, cmd Command, cs ChecksumType) ([]byte, error) {
	if len(cmd.Data) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(cmd.Data), MaxPayloadSize)
	}
	if src == BroadcastAddress || src == dest {
		return nil, fmt.Errorf("%w: source %d, destination %d", ErrInvalidAddress, src, dest)
	}

	buf := make([]byte, frameOverhead+len(cmd.Data))
	buf[DestinationOffset] = byte(dest)
	buf[LengthOffset] = byte(len(cmd.Data))
	buf[SourceOffset] = byte(src)
	buf[HeaderOffset] = byte(cmd.Header)
	copy(buf[DataOffset:], cmd.Data)

	switch cs {
	case ChecksumCRC16:
		// The CRC low byte replaces the source field; the high byte
		// takes the checksum position.
		crc := crc16(buf[:len(buf)-1])
		buf[SourceOffset] = byte(crc)
		buf[len(buf)-1] = byte(crc >> 8)
	default:
		buf[len(buf)-1] = sum8(buf[:len(buf)-1])
	}

	return buf, nil
}

// Decode parses and verifies one frame from the start of buf.
//
// It returns the decoded frame and the number of bytes consumed.
// If buf holds fewer bytes than the frame's declared size, Decode
// returns ErrIncompleteFrame and the caller should read more bytes and
// try again; it never blocks. A declared data length above
// MaxPayloadSize yields ErrMalformedFrame. A complete frame whose
// checksum does not verify yields ErrChecksumMismatch.
func Decode(buf []byte, cs ChecksumType) (*Frame, int, error) {
	if len(buf) < DataOffset {
		return nil, 0, ErrIncompleteFrame
	}

	dataLen := int(buf[LengthOffset])
	if dataLen > MaxPayloadSize {
		return nil, 0, fmt.Errorf("%w: declared data length %d exceeds %d", ErrMalformedFrame, dataLen, MaxPayloadSize)
	}

	size := frameOverhead + dataLen
	if len(buf) < size {
		return nil, 0, ErrIncompleteFrame
	}

	frame := buf[:size]

	switch cs {
	case ChecksumCRC16:
		wire := uint16(frame[size-1])<<8 | uint16(frame[SourceOffset])
		if calc := crc16(frame[:size-1]); wire != calc {
			return nil, size, fmt.Errorf("%w: wire=0x%04X computed=0x%04X", ErrChecksumMismatch, wire, calc)
		}
	default:
		if wire, calc := frame[size-1], sum8(frame[:size-1]); wire != calc {
			return nil, size, fmt.Errorf("%w: wire=0x%02X computed=0x%02X", ErrChecksumMismatch, wire, calc)
		}
	}

	f := &Frame{
		Destination: Address(frame[DestinationOffset]),
		Source:      Address(frame[SourceOffset]),
		Header:      Header(frame[HeaderOffset]),
	}

	// With CRC-16 framing the source byte carries the CRC low byte, so
	// the sender's address is not on the wire. The engine attributes
	// the frame from the turn-taking context instead.
	if cs == ChecksumCRC16 {
		f.Source = 0
	}

	if dataLen > 0 {
		f.Data = make([]byte, dataLen)
		copy(f.Data, frame[DataOffset:DataOffset+dataLen])
	}

	return f, size, nil
}
