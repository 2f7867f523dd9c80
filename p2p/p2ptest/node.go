// Package p2ptest provides an in-process Bitcoin node speaking just enough of
// the peer-to-peer protocol to exercise handshakes, transaction pushes and
// mempool scans over a loopback listener.
package p2ptest

import (
	"bytes"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/btccli/btc-cli/p2pwire"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// UserAgent is the user agent the fake node advertises.
const UserAgent = "/p2ptest:0.1.0/"

// Config controls how the fake node behaves.
type Config struct {
	// Magic is the network magic the node frames messages with.
	Magic wire.BitcoinNet

	// Noise is sent after the node's version and before its verack, the
	// way real nodes send sendheaders, sendcmpct and friends.
	Noise []*p2pwire.Message

	// WithholdVerack makes the node answer the handshake with an endless
	// stream of noise and never send a verack.
	WithholdVerack bool

	// CloseOnAccept makes the node drop every connection right away.
	CloseOnAccept bool

	// MempoolReply is sent in answer to a mempool request.
	MempoolReply []*p2pwire.Message

	// PingOnMempool makes the node ping before sending MempoolReply.
	PingOnMempool bool

	// Silent makes the node stop writing after the handshake.
	Silent bool
}

// Node is a fake Bitcoin node listening on a loopback port.
type Node struct {
	cfg      Config
	listener net.Listener

	mu       sync.Mutex
	received []*p2pwire.Message
	conns    []net.Conn
	accepted int

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewNode starts a node listening on 127.0.0.1 on a random port.
func NewNode(cfg Config) (*Node, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:      cfg,
		listener: listener,
		quit:     make(chan struct{}),
	}

	n.wg.Add(1)
	go n.acceptLoop()

	return n, nil
}

// Addr returns the host:port the node listens on.
func (n *Node) Addr() string {
	return n.listener.Addr().String()
}

// Port returns the port the node listens on.
func (n *Node) Port() string {
	_, port, _ := net.SplitHostPort(n.Addr())

	return port
}

// Accepted returns the number of accepted connections.
func (n *Node) Accepted() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.accepted
}

// Received returns a copy of every message the node received.
func (n *Node) Received() []*p2pwire.Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]*p2pwire.Message(nil), n.received...)
}

// ReceivedCommand returns the received messages carrying the command.
func (n *Node) ReceivedCommand(command string) []*p2pwire.Message {
	var out []*p2pwire.Message
	for _, msg := range n.Received() {
		if msg.Command == command {
			out = append(out, msg)
		}
	}

	return out
}

// Close stops the listener and drops every open connection.
func (n *Node) Close() error {
	close(n.quit)
	err := n.listener.Close()

	n.mu.Lock()
	for _, conn := range n.conns {
		_ = conn.Close()
	}
	n.mu.Unlock()

	n.wg.Wait()

	return err
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()

	for {
		conn, err := n.listener.Accept()
		if err != nil {
			return
		}

		n.mu.Lock()
		n.accepted++
		n.conns = append(n.conns, conn)
		n.mu.Unlock()

		select {
		case <-n.quit:
			_ = conn.Close()
			return
		default:
		}

		if n.cfg.CloseOnAccept {
			_ = conn.Close()
			continue
		}

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			defer conn.Close()

			_ = n.serve(conn)
		}()
	}
}

func (n *Node) record(msg *p2pwire.Message) {
	n.mu.Lock()
	n.received = append(n.received, msg)
	n.mu.Unlock()
}

func (n *Node) send(conn net.Conn, msg *p2pwire.Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return p2pwire.WriteMessage(conn, n.cfg.Magic, msg)
}

func (n *Node) serve(conn net.Conn) error {
	first, err := p2pwire.ReadMessage(conn, n.cfg.Magic)
	if err != nil {
		return err
	}
	n.record(first)

	if first.Command != wire.CmdVersion {
		return errors.New("expected version")
	}

	version, err := nodeVersion()
	if err != nil {
		return err
	}
	if err := n.send(conn, version); err != nil {
		return err
	}

	for _, msg := range n.cfg.Noise {
		if err := n.send(conn, msg); err != nil {
			return err
		}
	}

	if n.cfg.WithholdVerack {
		return n.flood(conn)
	}

	if err := n.send(conn, p2pwire.NewVerAckMessage()); err != nil {
		return err
	}

	for {
		msg, err := p2pwire.ReadMessage(conn, n.cfg.Magic)
		if err != nil {
			return err
		}
		n.record(msg)

		if msg.Command != wire.CmdMemPool || n.cfg.Silent {
			continue
		}

		if n.cfg.PingOnMempool {
			ping := &p2pwire.Message{
				Command: wire.CmdPing,
				Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8},
			}
			if err := n.send(conn, ping); err != nil {
				return err
			}
		}

		for _, reply := range n.cfg.MempoolReply {
			if err := n.send(conn, reply); err != nil {
				return err
			}
		}
	}
}

// flood keeps sending harmless messages until the client goes away.
func (n *Node) flood(conn net.Conn) error {
	for {
		select {
		case <-n.quit:
			return nil
		default:
		}

		msg := &p2pwire.Message{Command: wire.CmdSendHeaders}
		if err := n.send(conn, msg); err != nil {
			return err
		}
	}
}

// nodeVersion builds the version message the fake node advertises.
func nodeVersion() (*p2pwire.Message, error) {
	msg := wire.NewMsgVersion(
		&wire.NetAddress{}, &wire.NetAddress{}, 0x5eed, 100,
	)
	msg.ProtocolVersion = int32(p2pwire.ProtocolVersion)
	msg.UserAgent = UserAgent

	var buf bytes.Buffer
	err := msg.BtcEncode(&buf, p2pwire.ProtocolVersion, wire.BaseEncoding)
	if err != nil {
		return nil, err
	}

	return &p2pwire.Message{
		Command: wire.CmdVersion,
		Payload: buf.Bytes(),
	}, nil
}

// AnnounceTx builds an inv announcing txid with the given type.
func AnnounceTx(invType wire.InvType, txid chainhash.Hash) *p2pwire.Message {
	msg, err := p2pwire.NewInvMessage(p2pwire.InvEntry{
		Type: invType,
		Hash: txid,
	})
	if err != nil {
		panic(err)
	}

	return msg
}
