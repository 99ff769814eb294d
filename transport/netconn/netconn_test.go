package netconn

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { _ = server.Close() })

	tr := New(client)
	t.Cleanup(func() { _ = tr.Close() })

	frame := []byte{2, 0, 1, 254, 255}

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, len(frame))
		_, _ = server.Read(buf)
		done <- buf
	}()

	require.NoError(t, tr.Write(frame))
	assert.Equal(t, frame, <-done)

	go func() {
		_, _ = server.Write([]byte{1, 0, 2, 0, 253})
	}()

	var got []byte
	require.Eventually(t, func() bool {
		chunk, err := tr.ReadAvailable()
		require.NoError(t, err)
		got = append(got, chunk...)

		return len(got) == 5
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, []byte{1, 0, 2, 0, 253}, got)
}

func TestReadAvailable_EmptyOnIdleLine(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { _ = server.Close() })

	tr := New(client)
	t.Cleanup(func() { _ = tr.Close() })

	chunk, err := tr.ReadAvailable()
	require.NoError(t, err)
	assert.Empty(t, chunk)
}

func TestClose(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { _ = server.Close() })

	tr := New(client)
	require.False(t, tr.Closed())

	require.NoError(t, tr.Close())
	assert.True(t, tr.Closed())
	assert.NoError(t, tr.Close())

	assert.Error(t, tr.Write([]byte{1}))

	_, err := tr.ReadAvailable()
	assert.Error(t, err)
}
