// Package p2p drives short lived connections to Bitcoin nodes: connect,
// perform the version handshake, push a transaction, ask for the mempool and
// watch the announcements that follow.
package p2p

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/btccli/btc-cli/discovery"
	"github.com/btccli/btc-cli/p2pwire"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// HandshakeState tracks the progress of the version/verack exchange.
type HandshakeState uint8

const (
	// StateStart is the state of a fresh connection.
	StateStart HandshakeState = iota

	// StateVersionSent means our version message is on the wire.
	StateVersionSent

	// StateAwaitingVerack means the remote version was answered and only
	// its verack is missing.
	StateAwaitingVerack

	// StateDone means the handshake completed.
	StateDone

	// StateFailed means the handshake failed and the peer is unusable.
	StateFailed
)

// String returns a human readable name for the state.
func (s HandshakeState) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateVersionSent:
		return "VersionSent"
	case StateAwaitingVerack:
		return "AwaitingVerack"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("HandshakeState(%d)", uint8(s))
	}
}

// Peer is a single-use connection to one remote node. It is owned by the
// function driving the interaction and must be closed on every exit path.
type Peer struct {
	cfg  *Config
	addr string
	conn net.Conn

	// reader keeps a partially received message across read timeouts.
	reader *p2pwire.Reader

	state         HandshakeState
	remoteVersion *wire.MsgVersion
}

// Connect dials addr, which is either a bare IP or a host:port pair. The
// attempt is bounded by the connect timeout even when the remote never
// answers.
func Connect(ctx context.Context, cfg *Config, addr string) (*Peer, error) {
	cfg = cfg.withDefaults()
	addr = discovery.JoinHostPort(addr, cfg.DefaultPort)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	conn, err := cfg.Dial(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		return nil, newConnectError(addr, err)
	}

	log.Debugf("Connected to %v", addr)

	return &Peer{
		cfg:    cfg,
		addr:   addr,
		conn:   conn,
		reader: p2pwire.NewReader(conn, cfg.Magic),
	}, nil
}

// Addr returns the host:port of the remote node.
func (p *Peer) Addr() string {
	return p.addr
}

// String returns the remote address.
func (p *Peer) String() string {
	return p.addr
}

// State returns the current handshake state.
func (p *Peer) State() HandshakeState {
	return p.state
}

// RemoteVersion returns the version message the peer sent during the
// handshake, if it could be decoded.
func (p *Peer) RemoteVersion() *wire.MsgVersion {
	return p.remoteVersion
}

// Close closes the underlying connection. It is safe to call more than once.
func (p *Peer) Close() error {
	if p.conn == nil {
		return nil
	}

	err := p.conn.Close()
	p.conn = nil

	log.Tracef("Disconnected from %v", p.addr)

	return err
}

// deadline returns the deadline for one I/O operation: the I/O timeout,
// shortened by the context deadline if that comes first.
func (p *Peer) deadline(ctx context.Context, limit time.Duration) time.Time {
	if limit <= 0 || limit > p.cfg.IOTimeout {
		limit = p.cfg.IOTimeout
	}

	deadline := time.Now().Add(limit)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	return deadline
}

// interruptOnDone makes a blocked read or write return as soon as ctx is
// done. The returned function must be called once the operation finished.
func (p *Peer) interruptOnDone(ctx context.Context) func() bool {
	conn := p.conn

	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
}

// WriteMessage frames and sends msg.
func (p *Peer) WriteMessage(ctx context.Context, msg *p2pwire.Message) error {
	if p.conn == nil {
		return ErrNotConnected
	}

	stop := p.interruptOnDone(ctx)
	defer stop()

	if err := p.conn.SetWriteDeadline(p.deadline(ctx, 0)); err != nil {
		return err
	}

	err := p2pwire.WriteMessage(p.conn, p.cfg.Magic, msg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return fmt.Errorf("send %s to %v: %w", msg.Command, p.addr, err)
	}

	return nil
}

// ReadMessage reads the next message, waiting at most limit (capped at the
// I/O timeout; zero selects the I/O timeout). When the wait ends in the
// middle of a message, the bytes received so far are kept and the next call
// resumes the same message.
func (p *Peer) ReadMessage(ctx context.Context,
	limit time.Duration) (*p2pwire.Message, error) {

	if p.conn == nil {
		return nil, ErrNotConnected
	}

	stop := p.interruptOnDone(ctx)
	defer stop()

	if err := p.conn.SetReadDeadline(p.deadline(ctx, limit)); err != nil {
		return nil, err
	}

	msg, err := p.reader.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, fmt.Errorf("read from %v: %w", p.addr, err)
	}

	return msg, nil
}

// Handshake sends our version message and waits for the peer's verack,
// answering its version with a verack along the way. Any other message is
// discarded. The peer gets a bounded number of messages to complete the
// exchange.
func (p *Peer) Handshake(ctx context.Context) error {
	err := p.handshake(ctx)
	if err != nil {
		p.state = StateFailed

		return fmt.Errorf("handshake with %v: %w", p.addr, err)
	}

	p.state = StateDone
	log.Debugf("Handshake with %v complete (%v)", p.addr,
		p.remoteUserAgent())

	return nil
}

func (p *Peer) handshake(ctx context.Context) error {
	version, err := p2pwire.NewVersionMessage(
		rand.Uint64(), p.cfg.Clock.Now(),
	)
	if err != nil {
		return err
	}

	if err := p.WriteMessage(ctx, version); err != nil {
		return err
	}
	p.state = StateVersionSent

	for i := 0; i < p.cfg.MaxHandshakeMessages; i++ {
		msg, err := p.ReadMessage(ctx, 0)
		if err != nil {
			return err
		}

		switch msg.Command {
		case wire.CmdVersion:
			remote, err := p2pwire.DecodeVersion(msg.Payload)
			if err != nil {
				log.Debugf("Undecodable version from %v: %v",
					p.addr, err)
			}
			p.remoteVersion = remote

			err = p.WriteMessage(ctx, p2pwire.NewVerAckMessage())
			if err != nil {
				return err
			}
			p.state = StateAwaitingVerack

		case wire.CmdVerAck:
			return nil

		default:
			log.Tracef("Ignoring %v from %v during handshake",
				msg, p.addr)
		}
	}

	return ErrHandshakeBound
}

// remoteUserAgent returns the user agent advertised by the peer.
func (p *Peer) remoteUserAgent() string {
	if p.remoteVersion == nil || p.remoteVersion.UserAgent == "" {
		return "unknown agent"
	}

	return p.remoteVersion.UserAgent
}

// SendTx pushes a serialized transaction to the peer.
func (p *Peer) SendTx(ctx context.Context, rawTx []byte) error {
	return p.WriteMessage(ctx, p2pwire.NewTxMessage(rawTx))
}

// RequestMempool asks the peer to announce its mempool (BIP35).
func (p *Peer) RequestMempool(ctx context.Context) error {
	return p.WriteMessage(ctx, p2pwire.NewMemPoolMessage())
}

// ScanInv reads messages until window elapses, looking for an inv that
// announces txid (internal byte order). Pings are answered so the peer keeps
// the connection open. An elapsed window is a clean (false, nil); a failed
// read ends the scan with the error.
func (p *Peer) ScanInv(ctx context.Context, txid chainhash.Hash,
	window time.Duration) (bool, error) {

	end := p.cfg.Clock.Now().Add(window)

	for {
		remaining := end.Sub(p.cfg.Clock.Now())
		if remaining <= 0 {
			return false, nil
		}

		msg, err := p.ReadMessage(ctx, remaining)
		switch {
		// A quiet peer isn't a broken one; the window decides.
		case err != nil && isTimeout(err) && ctx.Err() == nil:
			continue

		case err != nil:
			return false, err
		}

		switch msg.Command {
		case wire.CmdInv:
			if p2pwire.ContainsTx(msg.Payload, txid) {
				log.Debugf("Peer %v announced %v", p.addr, txid)
				return true, nil
			}

		case wire.CmdPing:
			pong := p2pwire.NewPongMessage(msg)
			if err := p.WriteMessage(ctx, pong); err != nil {
				return false, err
			}

		default:
			log.Tracef("Ignoring %v from %v while scanning", msg,
				p.addr)
		}
	}
}
