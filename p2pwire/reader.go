package p2pwire

import (
	"errors"
	"fmt"
	"io"

	"github.com/btccli/btc-cli/btchash"
	"github.com/btcsuite/btcd/wire"
)

// maxRetainedBuffer is the largest read buffer kept between messages.
const maxRetainedBuffer = 64 * 1024

// Reader reads framed messages from a stream whose reads can time out. The
// bytes of a message that only arrived in part are kept until the rest
// shows up, so a read interrupted by a deadline can be retried without
// losing the position in the stream.
type Reader struct {
	r     io.Reader
	magic wire.BitcoinNet

	// buf holds the bytes of the message currently being received.
	buf []byte
}

// NewReader returns a Reader for messages of the given network.
func NewReader(r io.Reader, magic wire.BitcoinNet) *Reader {
	return &Reader{
		r:     r,
		magic: magic,
	}
}

// Buffered returns the number of bytes received of a message that is not
// complete yet.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

// fill reads until the first n bytes of the current message are buffered.
// It never reads past them, so the next message stays in the stream.
func (r *Reader) fill(n int) error {
	if cap(r.buf) < n {
		grown := make([]byte, len(r.buf), n)
		copy(grown, r.buf)
		r.buf = grown
	}

	for len(r.buf) < n {
		read, err := r.r.Read(r.buf[len(r.buf):n])
		r.buf = r.buf[:len(r.buf)+read]
		if err == nil || len(r.buf) == n {
			continue
		}

		if errors.Is(err, io.EOF) && len(r.buf) > 0 {
			return io.ErrUnexpectedEOF
		}

		return err
	}

	return nil
}

// reset drops the current message.
func (r *Reader) reset() {
	if cap(r.buf) > maxRetainedBuffer {
		r.buf = nil
		return
	}

	r.buf = r.buf[:0]
}

// ReadMessage returns the next message. A read error such as a timeout
// leaves the partial message buffered for the next call. A header that
// fails validation or a bad checksum drops the message.
func (r *Reader) ReadMessage() (*Message, error) {
	if err := r.fill(HeaderSize); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var raw [HeaderSize]byte
	copy(raw[:], r.buf)
	hdr := decodeHeader(raw)
	if err := hdr.validate(r.magic); err != nil {
		r.reset()
		return nil, err
	}

	if err := r.fill(HeaderSize + int(hdr.length)); err != nil {
		return nil, fmt.Errorf("read %q payload: %w", hdr.command,
			err)
	}

	payload := make([]byte, hdr.length)
	copy(payload, r.buf[HeaderSize:])
	r.reset()

	if btchash.Checksum(payload) != hdr.checksum {
		return nil, fmt.Errorf("%w: command %q", ErrBadChecksum,
			hdr.command)
	}

	msg := &Message{Command: hdr.command, Payload: payload}
	log.Tracef("Read %v", msg)

	return msg, nil
}
