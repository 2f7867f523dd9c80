// Package p2pwire implements the framing of Bitcoin peer-to-peer messages
// along with the handful of payloads the broadcast and verification paths
// need to produce or inspect.
package p2pwire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btccli/btc-cli/btchash"
	"github.com/btccli/btc-cli/lnutils"
	"github.com/btcsuite/btcd/wire"
)

const (
	// HeaderSize is the size of a message header: magic, command, payload
	// length and checksum.
	HeaderSize = 4 + CommandSize + 4 + btchash.ChecksumSize

	// CommandSize is the fixed, zero padded, width of the command field.
	CommandSize = wire.CommandSize

	// MaxPayloadSize is the largest payload accepted from a peer. Longer
	// messages are rejected before any payload byte is read.
	MaxPayloadSize = 4 * 1024 * 1024
)

var (
	// ErrPayloadTooLarge is returned when a header announces a payload
	// larger than MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrBadChecksum is returned when the payload does not hash to the
	// checksum carried in the header.
	ErrBadChecksum = errors.New("bad checksum")

	// ErrBadMagic is returned when a message carries the magic of a
	// different network.
	ErrBadMagic = errors.New("network magic mismatch")

	// ErrCommandTooLong is returned when asked to send a command that
	// does not fit the command field.
	ErrCommandTooLong = errors.New("command too long")
)

// Message is a single framed peer-to-peer message.
type Message struct {
	// Command is the ASCII command name, e.g. "version" or "inv".
	Command string

	// Payload is the raw message body. It may be empty.
	Payload []byte
}

// String returns a short human readable description of the message.
func (m *Message) String() string {
	return fmt.Sprintf("%s (%d bytes)", m.Command, len(m.Payload))
}

// header is the decoded form of the 24 byte message header.
type header struct {
	magic    wire.BitcoinNet
	command  string
	length   uint32
	checksum [btchash.ChecksumSize]byte
}

// WriteMessage frames msg for the given network and writes it to w with a
// single Write call.
func WriteMessage(w io.Writer, magic wire.BitcoinNet, msg *Message) error {
	if len(msg.Command) > CommandSize {
		return fmt.Errorf("%w: %q", ErrCommandTooLong, msg.Command)
	}
	if len(msg.Payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge,
			len(msg.Payload))
	}

	var command [CommandSize]byte
	copy(command[:], msg.Command)
	checksum := btchash.Checksum(msg.Payload)

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(msg.Payload))

	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], uint32(magic))
	buf.Write(scratch[:])
	buf.Write(command[:])
	binary.LittleEndian.PutUint32(scratch[:], uint32(len(msg.Payload)))
	buf.Write(scratch[:])
	buf.Write(checksum[:])
	buf.Write(msg.Payload)

	log.Tracef("Writing %v: %v", msg, lnutils.HexDumpClosure(msg.Payload))

	_, err := w.Write(buf.Bytes())

	return err
}

// ReadMessage reads one framed message from r. The magic and checksum of
// every message are validated; a mismatch is reported as an error so the
// caller can treat the peer as broken.
func ReadMessage(r io.Reader, magic wire.BitcoinNet) (*Message, error) {
	return NewReader(r, magic).ReadMessage()
}

// validate checks the header fields that can be judged before the payload
// is read.
func (h *header) validate(magic wire.BitcoinNet) error {
	if h.magic != magic {
		return fmt.Errorf("%w: got %v, want %v", ErrBadMagic, h.magic,
			magic)
	}

	if h.length > MaxPayloadSize {
		return fmt.Errorf("%w: %q announces %d bytes",
			ErrPayloadTooLarge, h.command, h.length)
	}

	return nil
}

// decodeHeader parses the fixed size header.
func decodeHeader(raw [HeaderSize]byte) header {
	var hdr header
	hdr.magic = wire.BitcoinNet(binary.LittleEndian.Uint32(raw[0:4]))

	command := raw[4 : 4+CommandSize]
	hdr.command = string(bytes.TrimRight(command, "\x00"))

	hdr.length = binary.LittleEndian.Uint32(raw[16:20])
	copy(hdr.checksum[:], raw[20:24])

	return hdr
}
