package btccfg

const (
	// DefaultVerifyPeers is the default number of peers sampled when
	// verifying propagation.
	DefaultVerifyPeers = 3

	// MaxVerifyPeers is the largest propagation sample.
	MaxVerifyPeers = 10
)

// Verify holds the propagation check options.
type Verify struct {
	// Enabled checks after broadcasting that peers announce the
	// transaction from their mempools.
	Enabled bool

	// Peers is the number of peers to check, 1 to 10.
	Peers int
}

// DefaultVerifyConfig returns the default propagation check options.
func DefaultVerifyConfig() *Verify {
	return &Verify{
		Peers: DefaultVerifyPeers,
	}
}

// Validate clamps the sample size into range.
func (v *Verify) Validate() error {
	v.Peers = ClampVerifyPeers(v.Peers)

	return nil
}

// ClampVerifyPeers bounds a sample size to 1..MaxVerifyPeers.
func ClampVerifyPeers(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxVerifyPeers:
		return MaxVerifyPeers
	default:
		return n
	}
}
