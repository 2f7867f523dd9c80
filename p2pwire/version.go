package p2pwire

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
)

const (
	// ProtocolVersion is the protocol version advertised in our version
	// message.
	ProtocolVersion uint32 = 70016

	// VersionPayloadSize is the size of the minimal version payload we
	// send.
	VersionPayloadSize = 86
)

// NewVersionMessage builds the minimal version message: no services, zeroed
// address fields, an empty user agent, start height zero and transaction
// relay disabled so the peer doesn't flood us with announcements before we
// ask for them.
func NewVersionMessage(nonce uint64, now time.Time) (*Message, error) {
	msg := &wire.MsgVersion{
		ProtocolVersion: int32(ProtocolVersion),
		Services:        0,
		Timestamp:       time.Unix(now.Unix(), 0),
		AddrYou:         wire.NetAddress{},
		AddrMe:          wire.NetAddress{},
		Nonce:           nonce,
		UserAgent:       "",
		LastBlock:       0,
		DisableRelayTx:  true,
	}

	var buf bytes.Buffer
	err := msg.BtcEncode(&buf, ProtocolVersion, wire.BaseEncoding)
	if err != nil {
		return nil, fmt.Errorf("encode version: %w", err)
	}

	return &Message{Command: wire.CmdVersion, Payload: buf.Bytes()}, nil
}

// DecodeVersion parses a version payload received from a peer. The wire
// decoder insists on a *bytes.Buffer to detect the optional relay flag.
func DecodeVersion(payload []byte) (*wire.MsgVersion, error) {
	var msg wire.MsgVersion
	err := msg.BtcDecode(
		bytes.NewBuffer(payload), ProtocolVersion, wire.BaseEncoding,
	)
	if err != nil {
		return nil, fmt.Errorf("decode version: %w", err)
	}

	return &msg, nil
}

// NewVerAckMessage returns the empty verack message.
func NewVerAckMessage() *Message {
	return &Message{Command: wire.CmdVerAck}
}

// NewMemPoolMessage returns the empty BIP35 mempool request.
func NewMemPoolMessage() *Message {
	return &Message{Command: wire.CmdMemPool}
}

// NewTxMessage wraps a serialized transaction.
func NewTxMessage(rawTx []byte) *Message {
	return &Message{Command: wire.CmdTx, Payload: rawTx}
}

// NewPongMessage answers a ping by echoing its payload, which carries the
// ping nonce.
func NewPongMessage(ping *Message) *Message {
	nonce := make([]byte, len(ping.Payload))
	copy(nonce, ping.Payload)

	return &Message{Command: wire.CmdPong, Payload: nonce}
}
