package p2p

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrHandshakeBound is returned when the peer sent the maximum number
	// of handshake messages without a verack.
	ErrHandshakeBound = errors.New("no verack within handshake message " +
		"bound")

	// ErrNotConnected is returned when using a closed peer.
	ErrNotConnected = errors.New("peer not connected")
)

// ConnectError describes a failed connection attempt.
type ConnectError struct {
	// Addr is the host:port that was dialed.
	Addr string

	// Timeout is set when the peer never answered within the connect
	// timeout.
	Timeout bool

	// Refused is set when the peer actively refused the connection.
	Refused bool

	// Err is the underlying dial error.
	Err error
}

// Error returns a human readable description of the failure.
func (e *ConnectError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("connect to %s: timed out", e.Addr)

	case e.Refused:
		return fmt.Sprintf("connect to %s: connection refused", e.Addr)

	default:
		return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err)
	}
}

// Unwrap returns the underlying dial error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// newConnectError classifies a dial error.
func newConnectError(addr string, err error) *ConnectError {
	connErr := &ConnectError{Addr: addr, Err: err}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		connErr.Timeout = true
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		connErr.Refused = true
	}

	return connErr
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
