package p2pwire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

const testMagic = wire.MainNet

// TestMessageRoundTrip checks that framing and reading a message reproduces
// its command and payload.
func TestMessageRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []*Message{
		{Command: "verack"},
		{Command: "tx", Payload: []byte{0x01, 0x00, 0x00, 0x00}},
		{Command: "sendaddrv2x1", Payload: bytes.Repeat([]byte{7}, 300)},
	}

	for _, msg := range tests {
		var buf bytes.Buffer
		require.NoError(t, WriteMessage(&buf, testMagic, msg))
		require.Equal(t, HeaderSize+len(msg.Payload), buf.Len())

		got, err := ReadMessage(&buf, testMagic)
		require.NoError(t, err)
		require.Equal(t, msg.Command, got.Command)
		require.Equal(t, len(msg.Payload), len(got.Payload))
		if len(msg.Payload) > 0 {
			require.Equal(t, msg.Payload, got.Payload)
		}
	}
}

// TestEmptyPayloadHeader checks the exact bytes of a verack so the framing
// stays wire compatible.
func TestEmptyPayloadHeader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, testMagic, NewVerAckMessage()))

	want := []byte{
		0xf9, 0xbe, 0xb4, 0xd9,
		'v', 'e', 'r', 'a', 'c', 'k', 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0,
		0x5d, 0xf6, 0xe0, 0xe2,
	}
	require.Equal(t, want, buf.Bytes())
}

func TestWriteMessageCommandTooLong(t *testing.T) {
	t.Parallel()

	msg := &Message{Command: "thiscommandistoolong"}
	err := WriteMessage(io.Discard, testMagic, msg)
	require.ErrorIs(t, err, ErrCommandTooLong)
}

// countingReader records how many bytes were consumed.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n

	return n, err
}

// TestOversizedPayloadRejected makes sure a header announcing more than the
// payload cap is refused before any payload byte is read.
func TestOversizedPayloadRejected(t *testing.T) {
	t.Parallel()

	var raw [HeaderSize]byte
	binary.LittleEndian.PutUint32(raw[0:4], uint32(testMagic))
	copy(raw[4:], "inv")
	binary.LittleEndian.PutUint32(raw[16:20], MaxPayloadSize+1)

	stream := append(raw[:], bytes.Repeat([]byte{0xaa}, 64)...)
	reader := &countingReader{r: bytes.NewReader(stream)}

	_, err := ReadMessage(reader, testMagic)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
	require.Equal(t, HeaderSize, reader.n)
}

func TestReadMessageValidation(t *testing.T) {
	t.Parallel()

	frame := func() []byte {
		var buf bytes.Buffer
		msg := &Message{Command: "ping", Payload: []byte("12345678")}
		require.NoError(t, WriteMessage(&buf, testMagic, msg))

		return buf.Bytes()
	}

	t.Run("bad checksum", func(t *testing.T) {
		t.Parallel()

		raw := frame()
		raw[len(raw)-1] ^= 0xff

		_, err := ReadMessage(bytes.NewReader(raw), testMagic)
		require.ErrorIs(t, err, ErrBadChecksum)
	})

	t.Run("wrong network", func(t *testing.T) {
		t.Parallel()

		_, err := ReadMessage(bytes.NewReader(frame()), wire.TestNet3)
		require.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("truncated payload", func(t *testing.T) {
		t.Parallel()

		raw := frame()
		_, err := ReadMessage(
			bytes.NewReader(raw[:len(raw)-3]), testMagic,
		)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("truncated header", func(t *testing.T) {
		t.Parallel()

		_, err := ReadMessage(bytes.NewReader(frame()[:10]), testMagic)
		require.Error(t, err)
	})
}
