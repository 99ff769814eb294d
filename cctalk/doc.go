// Package cctalk implements the wire-level ccTalk packet codec and the
// shared protocol types used by the host engine.
//
// ccTalk is a single-master, half-duplex serial protocol for unattended
// cash-handling peripherals (coin acceptors, bill validators, hoppers).
// The host addresses one device per exchange; the addressed device sends
// exactly one reply. There are no request IDs on the wire — turn-taking
// is the correlation mechanism.
//
// # Frame Layout
//
// A standard ccTalk frame is:
//
//	[destination][length][source][header][data...][checksum]
//
// where length counts only the data bytes (0–252). The trailing checksum
// is either the classic 8-bit two's-complement sum (the whole frame sums
// to zero modulo 256) or, for CRC-framed device families, the high byte
// of a CRC-16/CCITT whose low byte replaces the source field.
//
// # Scope
//
// This package is timing- and transport-free: encoding and decoding are
// pure functions over byte slices. Request scheduling, timeouts, and
// retransmission live in the host package.
package cctalk
