// Package host implements the ccTalk host-side protocol engine: bus
// scheduling, request/response correlation, and device liveness polling
// over a shared half-duplex serial line.
//
// # Architecture
//
// A [Host] owns one [Transport] (the byte-stream collaborator for the
// physical or bridged serial bus) and serializes every exchange through
// an internal bus arbiter. Because ccTalk carries no request IDs, the
// single-outstanding-request discipline IS the correlation mechanism:
// the engine guarantees that at most one request is in flight on the
// bus, and the next complete, checksum-verified frame is the reply to it.
//
// A call to [Host.SendCommand] performs one full exchange:
//
//	acquire bus turn → encode → write frame → await reply
//	  → (retransmit on timeout / corrupt reply, up to the retry bound)
//	  → release turn → result
//
// Waiters for the bus turn are served strictly first-in first-out, so
// background polling and ad-hoc commands share the line fairly.
//
// # Retransmission
//
// Retries resend the identical frame bytes. Device firmware treats a
// repeated frame as a fresh command, so a retried non-idempotent
// command (e.g. DispenseHopperCoins) can duplicate its effect if the
// original reply was lost rather than the request. Callers issuing
// such commands should disable retries with [WithNoRetry]; the protocol
// itself offers no duplicate detection.
//
// # Polling
//
// [Host.StartPollLoop] runs a background round-robin SimplePoll over a
// configured address set, tracking per-device health in [DeviceRecord]
// values. The loop issues its polls through the same bus arbiter as
// ad-hoc commands and keeps running across individual device failures.
package host
