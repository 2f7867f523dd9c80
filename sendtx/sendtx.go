// Package sendtx submits a transaction to the local node over JSON-RPC,
// retrying when the node cannot be reached and treating an already known
// transaction as a success.
package sendtx

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btccli/btc-cli/btchash"
	"github.com/btccli/btc-cli/lnutils"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/lightningnetwork/lnd/clock"
)

const (
	// DefaultMaxAttempts is the number of submissions tried when the
	// transport fails.
	DefaultMaxAttempts = 3

	// DefaultBackoff is the wait before the first retry. It doubles for
	// every further retry.
	DefaultBackoff = time.Second

	// DefaultTimeout bounds one JSON-RPC request.
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrInvalidHex is returned for a transaction that is not valid hex.
	ErrInvalidHex = errors.New("invalid transaction hex")

	// ErrInvalidFeeRate is returned for a maxfeerate that is not a
	// non-negative number.
	ErrInvalidFeeRate = errors.New("invalid maxfeerate")

	// ErrRetriesExhausted is returned when every attempt failed at the
	// transport level.
	ErrRetriesExhausted = errors.New("node unreachable")

	// ErrUnauthorized is returned when the node refuses the rpc
	// credentials.
	ErrUnauthorized = errors.New("rpc authentication failed")
)

// isAuthError reports whether err is the HTTP 401 or 403 answer of the node.
// rpcclient only surfaces it as the status line of a non JSON body.
func isAuthError(err error) bool {
	msg := err.Error()

	return strings.Contains(msg, "status code: 401") ||
		strings.Contains(msg, "status code: 403")
}

// Result describes an accepted submission.
type Result struct {
	// TxID is the display-order txid.
	TxID string

	// AlreadyKnown is set when the node already had the transaction.
	AlreadyKnown bool

	// InLocalMempool reports whether getmempoolentry found the
	// transaction after the submission. It is informational only.
	InLocalMempool bool
}

// Config configures a Submitter.
type Config struct {
	// Dial creates the connection to the node. It is called again for
	// every retry.
	Dial DialFunc

	// MaxAttempts is the total number of submissions tried.
	MaxAttempts int

	// Backoff is the wait before the first retry.
	Backoff time.Duration

	// Timeout bounds each request.
	Timeout time.Duration

	// Clock drives the retry backoff.
	Clock clock.Clock
}

// Submitter sends raw transactions to a node.
type Submitter struct {
	cfg Config
}

// New creates a submitter, filling unset fields with their defaults.
func New(cfg Config) *Submitter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &Submitter{cfg: cfg}
}

// sendParams builds the sendrawtransaction parameters.
func sendParams(txHex, maxFeeRate string) ([]json.RawMessage, error) {
	hexParam, err := json.Marshal(txHex)
	if err != nil {
		return nil, err
	}
	params := []json.RawMessage{hexParam}

	if maxFeeRate == "" {
		return params, nil
	}

	rate, err := strconv.ParseFloat(maxFeeRate, 64)
	if err != nil || rate < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFeeRate, maxFeeRate)
	}

	return append(params, json.RawMessage(maxFeeRate)), nil
}

// Submit sends txHex with sendrawtransaction. Transport failures are
// retried with a fresh connection and a doubling backoff. An RPC error is
// final, except for "already in chain" which counts as success.
func (s *Submitter) Submit(ctx context.Context, txHex,
	maxFeeRate string) (*Result, error) {

	txHex = strings.TrimSpace(txHex)
	rawTx, err := hex.DecodeString(txHex)
	if err != nil || len(rawTx) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex,
			truncate(txHex))
	}

	params, err := sendParams(txHex, maxFeeRate)
	if err != nil {
		return nil, err
	}

	var (
		client  RPCClient
		lastErr error
	)
	defer func() {
		if client != nil {
			client.Shutdown()
		}
	}()

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := s.cfg.Backoff << (attempt - 1)
			log.Infof("Retry %d/%d after %v...", attempt,
				s.cfg.MaxAttempts-1, backoff)

			select {
			case <-s.cfg.Clock.TickAfter(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			if client != nil {
				client.Shutdown()
				client = nil
			}
		}

		if client == nil {
			client, err = s.cfg.Dial()
			if err != nil {
				lastErr = err
				log.Warnf("Reconnect failed: %v", err)

				continue
			}
		}

		resp, err := call(
			ctx, client, s.cfg.Timeout, "sendrawtransaction",
			params...,
		)

		var rpcErr *btcjson.RPCError
		switch {
		case err == nil:
			var txid string
			if err := json.Unmarshal(resp, &txid); err != nil {
				return nil, fmt.Errorf("unexpected "+
					"sendrawtransaction result %s: %w",
					resp, err)
			}

			return s.finish(ctx, client, &Result{TxID: txid}), nil

		case errors.As(err, &rpcErr) &&
			rpcErr.Code == btcjson.ErrRPCVerifyAlreadyInChain:

			log.Infof("Transaction already known to the node: %v",
				rpcErr.Message)

			txid, err := s.localTxID(ctx, client, rawTx, txHex)
			if err != nil {
				return nil, err
			}

			return s.finish(ctx, client, &Result{
				TxID:         txid,
				AlreadyKnown: true,
			}), nil

		case rpcErr != nil:
			return nil, fmt.Errorf("sendrawtransaction: %w", rpcErr)

		case ctx.Err() != nil:
			return nil, ctx.Err()

		// Retrying with the same credentials can't succeed.
		case isAuthError(err):
			return nil, fmt.Errorf("%w (check rpcuser and "+
				"rpcpassword): %v", ErrUnauthorized, err)
		}

		lastErr = err
		log.Warnf("Network failure (attempt %d/%d): %v", attempt+1,
			s.cfg.MaxAttempts, err)

		// A timed out client has been shut down.
		var timeout *timeoutError
		if errors.As(err, &timeout) {
			client = nil
		}
	}

	return nil, fmt.Errorf("%w: sendrawtransaction failed after %d "+
		"attempts (network error): %v", ErrRetriesExhausted,
		s.cfg.MaxAttempts, lastErr)
}

// localTxID computes the txid of the raw transaction. If it cannot be
// deserialized the node is asked to decode it.
func (s *Submitter) localTxID(ctx context.Context, client RPCClient,
	rawTx []byte, txHex string) (string, error) {

	hash, err := btchash.TxIDFromRawTx(rawTx)
	if err == nil {
		return hash.String(), nil
	}
	log.Debugf("Cannot compute txid locally: %v", err)

	hexParam, err := json.Marshal(txHex)
	if err != nil {
		return "", err
	}

	resp, err := call(
		ctx, client, s.cfg.Timeout, "decoderawtransaction", hexParam,
	)
	if err != nil {
		return "", fmt.Errorf("decoderawtransaction: %w", err)
	}

	var decoded struct {
		TxID string `json:"txid"`
	}
	if err := json.Unmarshal(resp, &decoded); err != nil {
		return "", fmt.Errorf("decoderawtransaction: %w", err)
	}
	if !btchash.IsTxIDHex(decoded.TxID) {
		return "", fmt.Errorf("decoderawtransaction returned no txid")
	}

	return decoded.TxID, nil
}

// finish records whether the transaction sits in the node's mempool.
func (s *Submitter) finish(ctx context.Context, client RPCClient,
	result *Result) *Result {

	result.InLocalMempool = s.inMempool(ctx, client, result.TxID)

	log.Debugf("Submission result: %v", lnutils.SpewLogClosure(result))

	return result
}

// inMempool calls getmempoolentry for txid. Any failure reads as absent.
func (s *Submitter) inMempool(ctx context.Context, client RPCClient,
	txid string) bool {

	param, err := json.Marshal(txid)
	if err != nil {
		return false
	}

	_, err = call(ctx, client, s.cfg.Timeout, "getmempoolentry", param)
	if err != nil {
		log.Debugf("getmempoolentry %v: %v", txid, err)
		return false
	}

	return true
}

// truncate shortens long input for error messages.
func truncate(s string) string {
	const maxLen = 32
	if len(s) <= maxLen {
		return s
	}

	return s[:maxLen] + "..."
}
