package p2p

import (
	"context"
	"net"
	"time"

	"github.com/btccli/btc-cli/chainreg"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
)

const (
	// DefaultConnectTimeout bounds establishing the TCP connection.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultIOTimeout bounds every single read and write once connected.
	DefaultIOTimeout = 5 * time.Second

	// MaxHandshakeMessages is the number of messages read while waiting
	// for the verack before the handshake is abandoned.
	MaxHandshakeMessages = 20

	// DefaultScanWindow is how long a peer is watched for an inv
	// announcing the transaction.
	DefaultScanWindow = 10 * time.Second
)

// DialFunc opens a stream connection to addr.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn,
	error)

// Config holds the parameters shared by every peer connection of one
// operation.
type Config struct {
	// Magic is the network magic framing every message.
	Magic wire.BitcoinNet

	// DefaultPort is appended to candidate addresses that carry no port.
	DefaultPort string

	// ConnectTimeout bounds the TCP connect.
	ConnectTimeout time.Duration

	// IOTimeout bounds each read and write.
	IOTimeout time.Duration

	// MaxHandshakeMessages bounds the messages read during the
	// handshake.
	MaxHandshakeMessages int

	// Clock is the time source for version timestamps and scan windows.
	Clock clock.Clock

	// Dial overrides the dialer. When nil a net.Dialer bounded by
	// ConnectTimeout is used.
	Dial DialFunc
}

// NewConfig returns the default peer configuration for a network.
func NewConfig(params *chainreg.BitcoinNetParams) *Config {
	return &Config{
		Magic:                params.Magic(),
		DefaultPort:          params.P2PPort(),
		ConnectTimeout:       DefaultConnectTimeout,
		IOTimeout:            DefaultIOTimeout,
		MaxHandshakeMessages: MaxHandshakeMessages,
		Clock:                clock.NewDefaultClock(),
	}
}

// withDefaults fills in zero fields so a partially populated Config is
// still usable.
func (c *Config) withDefaults() *Config {
	cfg := *c
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = DefaultIOTimeout
	}
	if cfg.MaxHandshakeMessages <= 0 {
		cfg.MaxHandshakeMessages = MaxHandshakeMessages
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Dial == nil {
		dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
		cfg.Dial = dialer.DialContext
	}

	return &cfg
}
