package btccfg

import "time"

const (
	// DefaultRPCHost is the default host of the node's JSON-RPC server.
	DefaultRPCHost = "127.0.0.1"

	// DefaultRPCTimeout bounds a single JSON-RPC request.
	DefaultRPCTimeout = 30 * time.Second

	// DefaultRPCAttempts is the number of tries a transaction submission
	// gets when the transport fails.
	DefaultRPCAttempts = 3
)

// RPC holds the options of the connection to the node's JSON-RPC server.
type RPC struct {
	Connect string

	// Port defaults to the port of the selected network.
	Port     string
	User     string
	Password string

	// Timeout bounds a single JSON-RPC request.
	Timeout time.Duration

	// MaxAttempts is how often a submission is tried while the node is
	// unreachable.
	MaxAttempts int
}

// DefaultRPCConfig returns the default JSON-RPC options. The port is left
// empty so it follows the selected network.
func DefaultRPCConfig() *RPC {
	return &RPC{
		Connect:     DefaultRPCHost,
		Timeout:     DefaultRPCTimeout,
		MaxAttempts: DefaultRPCAttempts,
	}
}
