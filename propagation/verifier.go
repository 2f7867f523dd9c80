// Package propagation checks whether a transaction reached the mempools of
// randomly chosen peers by asking each for its mempool and watching for an
// inventory announcement of the transaction.
package propagation

import (
	"context"
	"fmt"
	"time"

	"github.com/btccli/btc-cli/btccfg"
	"github.com/btccli/btc-cli/btchash"
	"github.com/btccli/btc-cli/chainreg"
	"github.com/btccli/btc-cli/discovery"
	"github.com/btccli/btc-cli/p2p"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ErrNoPeers is returned when discovery yields no candidates at all.
var ErrNoPeers = discovery.ErrNoPeers

// Tally counts the peers examined and those that announced the transaction.
type Tally struct {
	// Checked is the number of peers that completed the handshake and
	// accepted the mempool request.
	Checked int

	// Confirmed is the number of checked peers that announced the
	// transaction within the scan window.
	Confirmed int
}

// String returns the tally in the confirmed/checked form.
func (t Tally) String() string {
	return fmt.Sprintf("%d/%d", t.Confirmed, t.Checked)
}

// Config holds the verifier configuration.
type Config struct {
	// Params are the parameters of the network to check.
	Params *chainreg.BitcoinNetParams

	// Peer configures the peer connections.
	Peer *p2p.Config

	// Candidates yields peer addresses. When nil the network's DNS seeds
	// are resolved with the system resolver.
	Candidates discovery.CandidateFunc

	// Window bounds how long each peer is watched.
	Window time.Duration
}

// Verifier samples peers for a transaction.
type Verifier struct {
	cfg Config
}

// New creates a verifier, filling unset fields with their defaults.
func New(cfg Config) *Verifier {
	if cfg.Params == nil {
		cfg.Params = &chainreg.BitcoinMainNetParams
	}
	if cfg.Peer == nil {
		cfg.Peer = p2p.NewConfig(cfg.Params)
	}
	if cfg.Candidates == nil {
		cfg.Candidates = discovery.SeedCandidates(
			discovery.NewDNSSeedBootstrapper(nil), cfg.Params,
		)
	}
	if cfg.Window <= 0 {
		cfg.Window = p2p.DefaultScanWindow
	}

	return &Verifier{cfg: cfg}
}

// Verify examines up to sample peers (clamped to 1..10) for txid, given in
// display order. Peers that cannot be reached, refuse the handshake or
// reject the mempool request are skipped and not counted. Running out of
// candidates before the sample is complete is not an error.
func (v *Verifier) Verify(ctx context.Context, txid string,
	sample int) (Tally, error) {

	var tally Tally

	hash, err := btchash.ParseTxID(txid)
	if err != nil {
		return tally, err
	}
	sample = btccfg.ClampVerifyPeers(sample)

	log.Infof("Looking up peers via DNS seeds...")
	addrs, err := v.cfg.Candidates(ctx, discovery.MaxSeedResults)
	if err != nil {
		return tally, err
	}
	if len(addrs) == 0 {
		return tally, ErrNoPeers
	}
	log.Infof("Found %d peer IPs", len(addrs))

	discovery.Shuffle(addrs)

	for _, addr := range addrs {
		if tally.Checked >= sample {
			break
		}
		if err := ctx.Err(); err != nil {
			return tally, err
		}

		found, ok := v.checkPeer(ctx, addr, hash)
		if !ok {
			continue
		}

		tally.Checked++
		if found {
			tally.Confirmed++
		}
	}

	log.Infof("Verified: %d/%d peers confirmed tx in mempool",
		tally.Confirmed, tally.Checked)
	if tally.Confirmed == 0 {
		log.Warnf("Transaction %v not found in any peer mempool", txid)
	}

	return tally, nil
}

// checkPeer asks one peer for its mempool and scans for the transaction. ok
// is false when the peer could not be examined at all.
func (v *Verifier) checkPeer(ctx context.Context, addr string,
	hash chainhash.Hash) (found, ok bool) {

	peer, err := p2p.Connect(ctx, v.cfg.Peer, addr)
	if err != nil {
		log.Infof("Connecting to %v... failed (connect)", addr)
		log.Debugf("Connect to %v: %v", addr, err)

		return false, false
	}

	if err := peer.Handshake(ctx); err != nil {
		log.Infof("Connecting to %v... failed (handshake)", peer)
		log.Debugf("%v", err)
		_ = peer.Close()

		return false, false
	}

	if err := peer.RequestMempool(ctx); err != nil {
		log.Infof("Connecting to %v... failed (mempool request)", peer)
		_ = peer.Close()

		return false, false
	}

	found, err = peer.ScanInv(ctx, hash, v.cfg.Window)
	if err != nil {
		log.Debugf("Scan of %v ended early: %v", peer, err)
	}
	_ = peer.Close()

	if found {
		log.Infof("Connecting to %v... CONFIRMED", peer)
	} else {
		log.Infof("Connecting to %v... not found", peer)
	}

	return found, true
}
