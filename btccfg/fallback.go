package btccfg

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// MaxFallbackPeers is the largest number of peers the direct peer
	// channel may push to.
	MaxFallbackPeers = 50

	// FallbackAllPeers is the peer count enabled by --fallback-all.
	FallbackAllPeers = 10
)

// Fallback names the broadcast channels used when the node's own RPC can't
// be relied upon.
type Fallback struct {
	MempoolSpace   bool
	Blockstream    bool
	Blockchair     bool
	BlockchainInfo bool
	BlockCypher    bool

	// EsploraURL is a custom Esplora push endpoint, http or https.
	EsploraURL string

	// P2PPeers is how many peers get the transaction directly, 1 to 50.
	// Zero disables the direct broadcast.
	P2PPeers int
}

// EnableAll turns on every public API plus the direct peer channel.
func (f *Fallback) EnableAll() {
	f.MempoolSpace = true
	f.Blockstream = true
	f.Blockchair = true
	f.BlockchainInfo = true
	f.BlockCypher = true
	f.P2PPeers = FallbackAllPeers
}

// HasAny reports whether at least one channel is enabled.
func (f *Fallback) HasAny() bool {
	return f.MempoolSpace || f.Blockstream || f.Blockchair ||
		f.BlockchainInfo || f.BlockCypher || f.EsploraURL != "" ||
		f.P2PPeers > 0
}

// Validate clamps the peer count and checks the custom Esplora URL.
func (f *Fallback) Validate() error {
	if f.P2PPeers < 0 {
		f.P2PPeers = 0
	}
	if f.P2PPeers > MaxFallbackPeers {
		f.P2PPeers = MaxFallbackPeers
	}

	if f.EsploraURL == "" {
		return nil
	}

	raw := f.EsploraURL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid esplora url %q: %w", f.EsploraURL,
			err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid esplora url %q: unsupported "+
			"scheme %q", f.EsploraURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid esplora url %q: missing host",
			f.EsploraURL)
	}

	f.EsploraURL = raw

	return nil
}

// ClampPeers bounds a user supplied --fallback-p2p value the same way the
// flag parser does: anything below one becomes one.
func ClampPeers(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxFallbackPeers:
		return MaxFallbackPeers
	default:
		return n
	}
}
