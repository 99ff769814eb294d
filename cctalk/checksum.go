package cctalk

import "fmt"

// ChecksumType selects the frame verification algorithm. Device families
// differ: most legacy peripherals use the simple 8-bit checksum, newer
// bill validators commonly use the CRC-16 variant. The type is chosen
// once per bus at engine construction.
type ChecksumType uint8

const (
	// ChecksumSum8 is the classic ccTalk simple checksum: the unsigned
	// sum of every frame byte, including the checksum itself, is zero
	// modulo 256.
	ChecksumSum8 ChecksumType = iota

	// ChecksumCRC16 is the CRC-16/CCITT variant (polynomial 0x1021,
	// initial value 0). The CRC covers destination, length, header and
	// data; the low byte is carried in the source field and the high
	// byte in the trailing checksum position.
	ChecksumCRC16
)

// String returns the configuration name of the checksum type.
func (t ChecksumType) String() string {
	switch t {
	case ChecksumSum8:
		return "sum8"
	case ChecksumCRC16:
		return "crc16"
	default:
		return fmt.Sprintf("ChecksumType(%d)", uint8(t))
	}
}

// Valid reports whether t is a known checksum type.
func (t ChecksumType) Valid() bool {
	return t == ChecksumSum8 || t == ChecksumCRC16
}

// sum8 computes the two's-complement 8-bit checksum over body, which
// must be the frame bytes without the trailing checksum byte.
func sum8(body []byte) byte {
	var sum byte
	for _, b := range body {
		sum += b
	}

	return byte(256 - uint16(sum))
}

// crc16 computes the CRC-16/CCITT over the frame bytes excluding the
// source field (which carries the CRC low byte on the wire) and the
// trailing checksum byte. body is the frame without the checksum byte.
func crc16(body []byte) uint16 {
	var crc uint16
	for i, b := range body {
		if i == SourceOffset {
			continue
		}

		crc = crcCCITTTable[byte(crc>>8)^b] ^ (crc << 8)
	}

	return crc
}

var crcCCITTTable = buildCRCTable()

func buildCRCTable() [256]uint16 {
	var table [256]uint16

	for i := range table {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}

		table[i] = crc
	}

	return table
}
