package sendtx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
)

// RPCClient is the part of the node's JSON-RPC client the submitter needs.
// *rpcclient.Client implements it.
type RPCClient interface {
	// RawRequest sends a JSON-RPC request and returns the raw result.
	RawRequest(method string, params []json.RawMessage) (json.RawMessage,
		error)

	// Shutdown releases the client. Pending requests fail.
	Shutdown()
}

// DialFunc creates a fresh client connection to the node.
type DialFunc func() (RPCClient, error)

// NewRPCDialer returns a DialFunc creating btcd rpcclient connections in
// HTTP POST mode, the only mode bitcoind supports.
func NewRPCDialer(host, user, pass string) DialFunc {
	return func() (RPCClient, error) {
		return rpcclient.New(&rpcclient.ConnConfig{
			Host:                 host,
			User:                 user,
			Pass:                 pass,
			DisableConnectOnNew:  true,
			DisableAutoReconnect: false,
			DisableTLS:           true,
			HTTPPostMode:         true,
		}, nil)
	}
}

// rawResult is the outcome of a request run in the background.
type rawResult struct {
	resp json.RawMessage
	err  error
}

// call issues one request bounded by ctx and timeout. A request that does
// not finish in time shuts the client down, so it must not be reused after a
// timeout.
func call(ctx context.Context, client RPCClient, timeout time.Duration,
	method string, params ...json.RawMessage) (json.RawMessage, error) {

	done := make(chan rawResult, 1)
	go func() {
		resp, err := client.RawRequest(method, params)
		done <- rawResult{resp: resp, err: err}
	}()

	var timeoutChan <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutChan = timer.C
	}

	select {
	case res := <-done:
		return res.resp, res.err

	case <-timeoutChan:
		client.Shutdown()
		return nil, &timeoutError{method: method, timeout: timeout}

	case <-ctx.Done():
		client.Shutdown()
		return nil, ctx.Err()
	}
}

// timeoutError is returned when the node did not answer in time.
type timeoutError struct {
	method  string
	timeout time.Duration
}

func (e *timeoutError) Error() string {
	return e.method + " timed out after " + e.timeout.String()
}

// Timeout marks the error as a timeout.
func (e *timeoutError) Timeout() bool {
	return true
}
