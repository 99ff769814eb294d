package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payware/go-cctalk/cctalk"
)

// scriptTransport is an in-memory Transport scripted per write: each
// Write invokes onWrite, whose returned bytes become readable. It also
// flags interleaved exchanges (a write issued while reply bytes from a
// previous exchange were still unread).
type scriptTransport struct {
	mu          sync.Mutex
	writes      [][]byte
	pending     []byte
	chunkSize   int // max bytes per ReadAvailable; 0 means all
	closed      bool
	writeErr    error
	readErr     error
	interleaved bool

	// onWrite receives the 1-based write count and the written frame.
	onWrite func(n int, frame []byte) []byte
}

func (s *scriptTransport) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}
	if len(s.pending) > 0 {
		s.interleaved = true
	}

	frame := append([]byte(nil), data...)
	s.writes = append(s.writes, frame)

	if s.onWrite != nil {
		s.pending = append(s.pending, s.onWrite(len(s.writes), frame)...)
	}

	return nil
}

func (s *scriptTransport) ReadAvailable() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return nil, s.readErr
	}
	if len(s.pending) == 0 {
		return nil, nil
	}

	n := len(s.pending)
	if s.chunkSize > 0 && s.chunkSize < n {
		n = s.chunkSize
	}

	out := append([]byte(nil), s.pending[:n]...)
	s.pending = s.pending[n:]

	return out, nil
}

func (s *scriptTransport) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// inject makes bytes readable outside the write path, like a reply
// landing after its exchange already gave up.
func (s *scriptTransport) inject(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, b...)
}

func (s *scriptTransport) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.writes)
}

// encodeReply builds the wire bytes of a device reply to the host.
func encodeReply(t *testing.T, src cctalk.Address, header cctalk.Header, data []byte, cs cctalk.ChecksumType) []byte {
	t.Helper()

	frame, err := cctalk.Encode(cctalk.HostAddress, src, cctalk.NewCommand(header, data), cs)
	require.NoError(t, err)

	return frame
}

func newTestHost(t *testing.T, tr Transport, opts ...Option) *Host {
	t.Helper()

	h, err := New(tr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	return h
}

func TestSendCommand_Reply(t *testing.T) {
	tr := &scriptTransport{}
	tr.onWrite = func(n int, frame []byte) []byte {
		return encodeReply(t, 2, cctalk.HeaderReply, []byte{0x11, 0x22}, cctalk.ChecksumSum8)
	}

	h := newTestHost(t, tr)

	reply, err := h.SendCommand(context.Background(), 2, cctalk.RequestSerialNumber())
	require.NoError(t, err)
	assert.True(t, reply.IsACK())
	assert.Equal(t, cctalk.Address(2), reply.Source)
	assert.Equal(t, []byte{0x11, 0x22}, reply.Data)

	m := h.Metrics()
	assert.Equal(t, uint64(1), m.FramesSent.Load())
	assert.Equal(t, uint64(1), m.RepliesReceived.Load())
	assert.Equal(t, uint64(0), m.Retransmissions.Load())
}

func TestSendCommand_CRC16SourceAttribution(t *testing.T) {
	tr := &scriptTransport{}
	tr.onWrite = func(n int, frame []byte) []byte {
		return encodeReply(t, 40, cctalk.HeaderReply, []byte{7}, cctalk.ChecksumCRC16)
	}

	h := newTestHost(t, tr, WithChecksum(cctalk.ChecksumCRC16))

	reply, err := h.SendCommand(context.Background(), 40, cctalk.SimplePoll())
	require.NoError(t, err)

	// CRC16 framing destroys the source byte; the engine attributes the
	// reply to the device it addressed.
	assert.Equal(t, cctalk.Address(40), reply.Source)
	assert.Equal(t, []byte{7}, reply.Data)
}

func TestSendCommand_TimeoutExhaustsRetries(t *testing.T) {
	tr := &scriptTransport{} // never replies

	h := newTestHost(t, tr,
		WithTimeout(20*time.Millisecond),
		WithMaxRetries(2),
	)

	start := time.Now()
	_, err := h.SendCommand(context.Background(), 2, cctalk.SimplePoll())
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 3, tr.writeCount())
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)

	// Every retransmission carries the identical frame bytes.
	assert.Equal(t, tr.writes[0], tr.writes[1])
	assert.Equal(t, tr.writes[0], tr.writes[2])

	m := h.Metrics()
	assert.Equal(t, uint64(3), m.FramesSent.Load())
	assert.Equal(t, uint64(3), m.Timeouts.Load())
	assert.Equal(t, uint64(2), m.Retransmissions.Load())
}

func TestSendCommand_CorruptThenGoodReply(t *testing.T) {
	tr := &scriptTransport{}
	tr.onWrite = func(n int, frame []byte) []byte {
		reply := encodeReply(t, 2, cctalk.HeaderReply, []byte{1, 2, 3}, cctalk.ChecksumSum8)
		if n == 1 {
			reply[len(reply)-1]++ // corrupt the checksum
		}

		return reply
	}

	h := newTestHost(t, tr, WithTimeout(50*time.Millisecond))

	reply, err := h.SendCommand(context.Background(), 2, cctalk.SimplePoll())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, reply.Data)
	assert.Equal(t, 2, tr.writeCount())

	m := h.Metrics()
	assert.Equal(t, uint64(1), m.ChecksumFailures.Load())
	assert.Equal(t, uint64(1), m.Retransmissions.Load())
}

func TestSendCommand_NoRetry(t *testing.T) {
	tr := &scriptTransport{} // never replies

	h := newTestHost(t, tr, WithTimeout(20*time.Millisecond), WithMaxRetries(3))

	_, err := h.SendCommand(context.Background(), 3,
		cctalk.NewCommand(cctalk.HeaderDispenseHopperCoins, []byte{0, 0, 0, 0, 0, 0, 0, 0, 1}),
		WithNoRetry())

	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, tr.writeCount())
}

func TestSendCommand_TransportClosed(t *testing.T) {
	tr := &scriptTransport{closed: true}

	h := newTestHost(t, tr, WithMaxRetries(5))

	start := time.Now()
	_, err := h.SendCommand(context.Background(), 2, cctalk.SimplePoll())

	require.ErrorIs(t, err, ErrTransportClosed)
	assert.Equal(t, 0, tr.writeCount())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSendCommand_WriteErrorIsFatal(t *testing.T) {
	tr := &scriptTransport{writeErr: assert.AnError}

	h := newTestHost(t, tr, WithMaxRetries(5))

	_, err := h.SendCommand(context.Background(), 2, cctalk.SimplePoll())

	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, uint64(1), h.Metrics().TransportErrors.Load())
}

func TestSendCommand_ConcurrentCallersSerialized(t *testing.T) {
	tr := &scriptTransport{chunkSize: 1}
	tr.onWrite = func(n int, frame []byte) []byte {
		return encodeReply(t, cctalk.Address(frame[cctalk.DestinationOffset]), cctalk.HeaderReply, nil, cctalk.ChecksumSum8)
	}

	h := newTestHost(t, tr, WithTimeout(time.Second))

	var wg sync.WaitGroup
	for _, dest := range []cctalk.Address{2, 3, 4, 5} {
		wg.Add(1)
		go func(d cctalk.Address) {
			defer wg.Done()

			reply, err := h.SendCommand(context.Background(), d, cctalk.SimplePoll())
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, d, reply.Source)
		}(dest)
	}
	wg.Wait()

	assert.Equal(t, 4, tr.writeCount())
	assert.False(t, tr.interleaved, "a request was written before the previous reply was consumed")
}

func TestSendCommand_CancelWhileWaiting(t *testing.T) {
	tr := &scriptTransport{} // never replies

	h := newTestHost(t, tr, WithTimeout(time.Second), WithMaxRetries(3))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := h.SendCommand(ctx, 2, cctalk.SimplePoll())

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tr.writeCount(), "cancellation must not trigger a retransmission")
}

// slowWriteTransport delays each Write to model a frame in flight on a
// slow line.
type slowWriteTransport struct {
	scriptTransport
	writeDelay time.Duration
}

func (s *slowWriteTransport) Write(data []byte) error {
	time.Sleep(s.writeDelay)
	return s.scriptTransport.Write(data)
}

func TestSendCommand_CancelDuringWriteCompletesFrame(t *testing.T) {
	tr := &slowWriteTransport{writeDelay: 40 * time.Millisecond}

	h := newTestHost(t, tr, WithTimeout(time.Second), WithMaxRetries(3))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := h.SendCommand(ctx, 2, cctalk.SimplePoll())

	// The frame already in flight is fully transmitted; the call then
	// resolves cancelled instead of retransmitting.
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tr.writeCount())
}

func TestSendCommand_LocalEcho(t *testing.T) {
	tr := &scriptTransport{chunkSize: 3}
	tr.onWrite = func(n int, frame []byte) []byte {
		// Two-wire bus: the host reads back its own frame first.
		echoed := append([]byte(nil), frame...)
		return append(echoed, encodeReply(t, 2, cctalk.HeaderReply, []byte{9}, cctalk.ChecksumSum8)...)
	}

	h := newTestHost(t, tr, WithLocalEcho(true))

	reply, err := h.SendCommand(context.Background(), 2, cctalk.SimplePoll())
	require.NoError(t, err)
	assert.True(t, reply.IsACK())
	assert.Equal(t, []byte{9}, reply.Data)
}

func TestSendCommand_ChunkedReply(t *testing.T) {
	tr := &scriptTransport{chunkSize: 1}
	tr.onWrite = func(n int, frame []byte) []byte {
		return encodeReply(t, 2, cctalk.HeaderReply, []byte{0xAA, 0xBB, 0xCC}, cctalk.ChecksumSum8)
	}

	h := newTestHost(t, tr)

	reply, err := h.SendCommand(context.Background(), 2, cctalk.SimplePoll())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, reply.Data)
}

func TestSendCommand_LateReplyNotPairedWithNextRequest(t *testing.T) {
	tr := &scriptTransport{} // device 2 never answers in time

	h := newTestHost(t, tr, WithTimeout(20*time.Millisecond), WithMaxRetries(0))

	_, err := h.SendCommand(context.Background(), 2, cctalk.NewCommand(cctalk.HeaderReadBufferedCredit, nil))
	require.ErrorIs(t, err, ErrTimeout)

	// Device 2's reply shows up after its exchange gave up.
	tr.inject(encodeReply(t, 2, cctalk.HeaderReply, []byte{238}, cctalk.ChecksumSum8))

	// The stale frame must not resolve an exchange with device 5.
	_, err = h.SendCommand(context.Background(), 5, cctalk.SimplePoll())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestSendCommand_LateReplyNotPairedCRC16(t *testing.T) {
	tr := &scriptTransport{}

	h := newTestHost(t, tr,
		WithChecksum(cctalk.ChecksumCRC16),
		WithTimeout(20*time.Millisecond),
		WithMaxRetries(0),
	)

	_, err := h.SendCommand(context.Background(), 2, cctalk.SimplePoll())
	require.ErrorIs(t, err, ErrTimeout)

	tr.inject(encodeReply(t, 2, cctalk.HeaderReply, []byte{1}, cctalk.ChecksumCRC16))

	// Without the flush the stale frame would even be attributed to
	// device 5, whose address never appeared on the wire.
	_, err = h.SendCommand(context.Background(), 5, cctalk.SimplePoll())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestSendCommand_SkipsFramesForOtherAddresses(t *testing.T) {
	tr := &scriptTransport{}
	tr.onWrite = func(n int, frame []byte) []byte {
		// A frame addressed elsewhere precedes the genuine reply.
		foreign, err := cctalk.Encode(9, 2, cctalk.NewCommand(cctalk.HeaderReply, []byte{0xEE}), cctalk.ChecksumSum8)
		require.NoError(t, err)

		return append(foreign, encodeReply(t, 2, cctalk.HeaderReply, []byte{5}, cctalk.ChecksumSum8)...)
	}

	h := newTestHost(t, tr)

	reply, err := h.SendCommand(context.Background(), 2, cctalk.SimplePoll())
	require.NoError(t, err)
	assert.Equal(t, cctalk.Address(2), reply.Source)
	assert.Equal(t, []byte{5}, reply.Data)
}

func TestSendCommand_BusyReply(t *testing.T) {
	tr := &scriptTransport{}
	tr.onWrite = func(n int, frame []byte) []byte {
		return encodeReply(t, 3, cctalk.HeaderBusy, nil, cctalk.ChecksumSum8)
	}

	h := newTestHost(t, tr)

	reply, err := h.SendCommand(context.Background(), 3, cctalk.ResetDevice())
	require.NoError(t, err)
	assert.True(t, reply.IsBusy())
	assert.False(t, reply.IsACK())
}

func TestHost_CloseRejectsSends(t *testing.T) {
	tr := &scriptTransport{}

	h, err := New(tr)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = h.SendCommand(context.Background(), 2, cctalk.SimplePoll())
	assert.ErrorIs(t, err, ErrHostClosed)

	// Close is idempotent.
	assert.NoError(t, h.Close())
}

func TestNew_NilTransport(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestSendCommand_EncodeErrorBeforeBus(t *testing.T) {
	tr := &scriptTransport{}

	h := newTestHost(t, tr)

	_, err := h.SendCommand(context.Background(), 2,
		cctalk.NewCommand(cctalk.HeaderModifyVariableSet, make([]byte, cctalk.MaxPayloadSize+1)))

	require.ErrorIs(t, err, cctalk.ErrPayloadTooLarge)
	assert.Equal(t, 0, tr.writeCount())
}
