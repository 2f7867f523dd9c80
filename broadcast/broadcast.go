// Package broadcast pushes one transaction through every enabled channel:
// public block explorer APIs, a custom Esplora endpoint and direct peers.
// Channels run one after the other and a failing channel never stops the
// remaining ones.
package broadcast

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btccli/btc-cli/btccfg"
	"github.com/btccli/btc-cli/chainreg"
	"github.com/btccli/btc-cli/discovery"
	"github.com/btccli/btc-cli/esplora"
	"github.com/btccli/btc-cli/httppush"
	"github.com/btccli/btc-cli/lnutils"
	"github.com/btccli/btc-cli/p2p"
	"github.com/lightningnetwork/lnd/clock"
)

// Channel names, in the order they are tried.
const (
	ChannelMempoolSpace   = "mempool.space"
	ChannelBlockstream    = "blockstream"
	ChannelBlockchair     = "blockchair"
	ChannelBlockchainInfo = "blockchain.info"
	ChannelBlockCypher    = "blockcypher"
	ChannelEsplora        = "esplora"
	ChannelP2P            = "p2p-broadcast"
)

const (
	// MaxResults caps the number of channel results of one broadcast.
	MaxResults = 10

	// DefaultFlushDelay is the pause after sending a transaction to a
	// peer, so the message leaves the socket before it is closed.
	DefaultFlushDelay = 100 * time.Millisecond
)

var (
	// ErrInvalidHex is returned for a transaction that is not a non-empty,
	// even length hex string.
	ErrInvalidHex = errors.New("invalid transaction hex")
)

// Result is the outcome of one channel.
type Result struct {
	// Channel is the channel name.
	Channel string

	// Success is true when the channel accepted the transaction.
	Success bool

	// Token is the success token: a txid, or the provider's acceptance
	// marker, or the peer count summary of the direct peer channel.
	Token string

	// Err is the failure reason when Success is false.
	Err error
}

// String formats the result for the narration.
func (r Result) String() string {
	if r.Success {
		return fmt.Sprintf("%s: OK (%s)", r.Channel, r.Token)
	}

	return fmt.Sprintf("%s: FAILED (%v)", r.Channel, r.Err)
}

// Config holds everything a broadcast needs.
type Config struct {
	// Params are the parameters of the target network.
	Params *chainreg.BitcoinNetParams

	// Fallback names the enabled channels.
	Fallback *btccfg.Fallback

	// Endpoints are the public provider base URLs.
	Endpoints Endpoints

	// HTTPTimeout bounds every provider request.
	HTTPTimeout time.Duration

	// Peer configures the direct peer connections.
	Peer *p2p.Config

	// Candidates yields peer addresses for the direct peer channel. When
	// nil, the network's DNS seeds are resolved with the system resolver.
	Candidates discovery.CandidateFunc

	// FlushDelay is the pause between sending to a peer and closing it.
	FlushDelay time.Duration
}

// Orchestrator runs the enabled channels for a transaction.
type Orchestrator struct {
	cfg   Config
	http  *httppush.Client
	clock clock.Clock
}

// New creates an orchestrator, filling unset fields with their defaults.
func New(cfg Config) *Orchestrator {
	if cfg.Params == nil {
		cfg.Params = &chainreg.BitcoinMainNetParams
	}
	if cfg.Fallback == nil {
		cfg.Fallback = &btccfg.Fallback{}
	}
	if cfg.Endpoints == (Endpoints{}) {
		cfg.Endpoints = DefaultEndpoints()
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = httppush.DefaultTimeout
	}
	if cfg.Peer == nil {
		cfg.Peer = p2p.NewConfig(cfg.Params)
	}
	if cfg.Candidates == nil {
		cfg.Candidates = discovery.SeedCandidates(
			discovery.NewDNSSeedBootstrapper(nil), cfg.Params,
		)
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = DefaultFlushDelay
	}

	o := &Orchestrator{
		cfg:   cfg,
		http:  httppush.NewClient(cfg.HTTPTimeout),
		clock: cfg.Peer.Clock,
	}
	if o.clock == nil {
		o.clock = clock.NewDefaultClock()
	}

	return o
}

// DecodeTxHex validates the transaction hex and returns the raw bytes.
func DecodeTxHex(txHex string) ([]byte, error) {
	txHex = strings.TrimSpace(txHex)
	if txHex == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidHex)
	}
	if len(txHex)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrInvalidHex,
			len(txHex))
	}

	rawTx, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}

	return rawTx, nil
}

// channel is one enabled channel bound to its push function.
type channel struct {
	name string
	push pushFunc
}

// channels returns the enabled channels in their fixed order.
func (o *Orchestrator) channels() []channel {
	var (
		fb       = o.cfg.Fallback
		ep       = o.cfg.Endpoints
		params   = o.cfg.Params
		channels []channel
	)

	if fb.MempoolSpace {
		channels = append(channels, channel{
			name: ChannelMempoolSpace,
			push: o.esploraPush(esplora.PushURL(ep.MempoolSpace, params)),
		})
	}
	if fb.Blockstream {
		channels = append(channels, channel{
			name: ChannelBlockstream,
			push: o.esploraPush(esplora.PushURL(ep.Blockstream, params)),
		})
	}
	if fb.Blockchair {
		channels = append(channels, channel{
			name: ChannelBlockchair,
			push: o.pushBlockchair,
		})
	}
	if fb.BlockchainInfo {
		channels = append(channels, channel{
			name: ChannelBlockchainInfo,
			push: o.pushBlockchainInfo,
		})
	}
	if fb.BlockCypher {
		channels = append(channels, channel{
			name: ChannelBlockCypher,
			push: o.pushBlockCypher,
		})
	}
	if fb.EsploraURL != "" {
		channels = append(channels, channel{
			name: ChannelEsplora,
			push: o.esploraPush(fb.EsploraURL),
		})
	}
	if fb.P2PPeers > 0 {
		channels = append(channels, channel{
			name: ChannelP2P,
			push: o.pushToPeers,
		})
	}

	if len(channels) > MaxResults {
		channels = channels[:MaxResults]
	}

	return channels
}

// Broadcast pushes txHex through every enabled channel and returns the number
// of channels that accepted it together with all results. Only malformed hex
// is returned as an error; channel failures are part of the results.
func (o *Orchestrator) Broadcast(ctx context.Context,
	txHex string) (int, []Result, error) {

	rawTx, err := DecodeTxHex(txHex)
	if err != nil {
		return 0, nil, err
	}
	txHex = strings.ToLower(strings.TrimSpace(txHex))

	channels := o.channels()
	log.Infof("Broadcasting %d byte transaction on %v through %d "+
		"channel(s)", len(rawTx), o.cfg.Params.Network, len(channels))
	log.Debugf("Transaction: %v", lnutils.AbbrevHexClosure(rawTx))

	var (
		results   = make([]Result, 0, len(channels))
		successes int
	)
	for _, ch := range channels {
		log.Infof("Trying %v...", ch.name)

		token, err := ch.push(ctx, txHex, rawTx)
		result := Result{
			Channel: ch.name,
			Success: err == nil,
			Token:   token,
			Err:     err,
		}
		results = append(results, result)

		switch {
		case err == nil:
			successes++
			log.Infof("  %v", result)

		case isTLSError(err):
			log.Warnf("  %v (use a plain http endpoint)", result)

		default:
			log.Warnf("  %v", result)
		}
	}

	if successes == 0 && len(channels) > 0 {
		log.Errorf("Every enabled channel failed")
	}

	return successes, results, nil
}
