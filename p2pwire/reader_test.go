package p2pwire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errStalled = errors.New("i/o timeout")

// chunkReader hands out one chunk per Read and fails with errStalled
// between chunks, like a connection whose read deadline fires while the
// peer is still sending.
type chunkReader struct {
	chunks [][]byte
	stall  bool
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.stall {
		c.stall = false
		return 0, errStalled
	}
	if len(c.chunks) == 0 {
		return 0, errStalled
	}

	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
		c.stall = true
	}

	return n, nil
}

// TestReaderResumesAfterTimeout checks that a message split by read
// timeouts is reassembled, whether the split falls in the header or in the
// payload, and that the following message is read intact.
func TestReaderResumesAfterTimeout(t *testing.T) {
	t.Parallel()

	first := &Message{Command: "inv", Payload: bytes.Repeat([]byte{1}, 37)}
	second := &Message{Command: "ping", Payload: bytes.Repeat([]byte{2}, 8)}

	var stream bytes.Buffer
	require.NoError(t, WriteMessage(&stream, testMagic, first))
	require.NoError(t, WriteMessage(&stream, testMagic, second))
	raw := stream.Bytes()

	splits := []int{10, HeaderSize + 5, len(raw) - 3}
	src := &chunkReader{}
	prev := 0
	for _, split := range splits {
		src.chunks = append(src.chunks, raw[prev:split])
		prev = split
	}
	src.chunks = append(src.chunks, raw[prev:])

	r := NewReader(src, testMagic)

	var got []*Message
	for attempts := 0; attempts < 20 && len(got) < 2; attempts++ {
		msg, err := r.ReadMessage()
		if err != nil {
			require.ErrorIs(t, err, errStalled)
			continue
		}
		got = append(got, msg)
	}

	require.Len(t, got, 2)
	require.Equal(t, first, got[0])
	require.Equal(t, second, got[1])
	require.Zero(t, r.Buffered())
}

// TestReaderDropsInvalidHeader checks that a rejected header does not stay
// buffered.
func TestReaderDropsInvalidHeader(t *testing.T) {
	t.Parallel()

	var stream bytes.Buffer
	require.NoError(t, WriteMessage(&stream, testMagic, &Message{
		Command: "verack",
	}))
	raw := stream.Bytes()
	raw[0] ^= 0xff

	r := NewReader(bytes.NewReader(raw), testMagic)
	_, err := r.ReadMessage()
	require.ErrorIs(t, err, ErrBadMagic)
	require.Zero(t, r.Buffered())
}
