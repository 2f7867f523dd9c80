package broadcast

import (
	"context"
	"fmt"

	"github.com/btccli/btc-cli/chainreg"
	"github.com/btccli/btc-cli/discovery"
	"github.com/btccli/btc-cli/p2p"
)

// regtestFallbackAddr is tried when discovery finds nothing on regtest.
const regtestFallbackAddr = "127.0.0.1"

// candidates resolves and shuffles the peer candidates of the network.
func (o *Orchestrator) candidates(ctx context.Context) ([]string, error) {
	addrs, err := o.cfg.Candidates(ctx, discovery.MaxSeedResults)
	if err != nil {
		return nil, err
	}

	if len(addrs) == 0 && o.cfg.Params.Network == chainreg.RegTest {
		log.Debugf("No seeds on regtest, using %v", regtestFallbackAddr)
		addrs = []string{regtestFallbackAddr}
	}
	if len(addrs) == 0 {
		return nil, discovery.ErrNoPeers
	}

	discovery.Shuffle(addrs)

	return addrs, nil
}

// pushToPeers sends the transaction to up to Fallback.P2PPeers distinct
// peers. Peers that cannot be reached or refuse the handshake are skipped,
// and only handshaken peers count as tried.
func (o *Orchestrator) pushToPeers(ctx context.Context, _ string,
	rawTx []byte) (string, error) {

	addrs, err := o.candidates(ctx)
	if err != nil {
		return "", err
	}

	want := o.cfg.Fallback.P2PPeers
	log.Debugf("Sending to %d of %d candidate peers", want, len(addrs))

	var sent, tried int
	for _, addr := range addrs {
		if sent >= want || ctx.Err() != nil {
			break
		}

		peer, err := p2p.Connect(ctx, o.cfg.Peer, addr)
		if err != nil {
			log.Debugf("Skipping %v: %v", addr, err)
			continue
		}

		if err := peer.Handshake(ctx); err != nil {
			log.Debugf("Skipping %v: %v", addr, err)
			_ = peer.Close()

			continue
		}
		tried++

		if err := peer.SendTx(ctx, rawTx); err != nil {
			log.Debugf("Sending to %v failed: %v", peer, err)
		} else {
			sent++
			log.Infof("  -> %v OK", peer)
		}

		o.flushPause(ctx)
		_ = peer.Close()
	}

	if sent == 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		return "", fmt.Errorf("failed to broadcast to any of %d peers",
			tried)
	}

	return fmt.Sprintf("broadcast to %d/%d peers", sent, tried), nil
}

// flushPause waits for the flush delay unless ctx is done first.
func (o *Orchestrator) flushPause(ctx context.Context) {
	timer := o.clock.TickAfter(o.cfg.FlushDelay)
	select {
	case <-timer:
	case <-ctx.Done():
	}
}
