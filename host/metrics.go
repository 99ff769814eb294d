package host

import "sync/atomic"

// Metrics contains atomic counters for one engine instance. The fields
// can back a prometheus CounterFunc or GaugeFunc directly.
type Metrics struct {
	// FramesSent counts every frame written to the transport,
	// including retransmissions.
	FramesSent atomic.Uint64
	// Retransmissions counts frames re-sent after a failed attempt.
	Retransmissions atomic.Uint64
	// RepliesReceived counts checksum-verified replies.
	RepliesReceived atomic.Uint64
	// Timeouts counts attempts that expired without a complete reply.
	Timeouts atomic.Uint64
	// ChecksumFailures counts received frames the codec rejected,
	// whether the checksum failed verification or the frame structure
	// was malformed.
	ChecksumFailures atomic.Uint64
	// TransportErrors counts read/write failures on the transport.
	TransportErrors atomic.Uint64
	// PollRounds counts completed poll loop rounds across all loops.
	PollRounds atomic.Uint64
}

func (m *Metrics) incFramesSent()       { m.FramesSent.Add(1) }
func (m *Metrics) incRetransmissions()  { m.Retransmissions.Add(1) }
func (m *Metrics) incRepliesReceived()  { m.RepliesReceived.Add(1) }
func (m *Metrics) incTimeouts()         { m.Timeouts.Add(1) }
func (m *Metrics) incChecksumFailures() { m.ChecksumFailures.Add(1) }
func (m *Metrics) incTransportErrors()  { m.TransportErrors.Add(1) }
func (m *Metrics) incPollRounds()       { m.PollRounds.Add(1) }
