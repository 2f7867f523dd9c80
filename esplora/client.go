// Package esplora pushes transactions to Esplora-shaped explorers
// (mempool.space, blockstream.info, self-hosted electrs) which accept the raw
// transaction hex as a plain text POST body and answer with the txid.
package esplora

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btccli/btc-cli/chainreg"
	"github.com/btccli/btc-cli/httppush"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// MempoolSpaceURL is the base URL of mempool.space.
	MempoolSpaceURL = "https://mempool.space"

	// BlockstreamURL is the base URL of blockstream.info.
	BlockstreamURL = "https://blockstream.info"

	// contentType is the body type Esplora expects for /tx.
	contentType = "text/plain"
)

// ClientConfig holds the configuration for the Esplora client.
type ClientConfig struct {
	// URL is the full push endpoint, e.g. http://localhost:3002/api/tx.
	URL string

	// RequestTimeout is the timeout for individual HTTP requests.
	RequestTimeout time.Duration

	// MaxRetries is the maximum number of retries after a transport
	// failure. Provider answers are never retried.
	MaxRetries int
}

// Client pushes transactions to one Esplora endpoint.
type Client struct {
	cfg *ClientConfig

	httpClient *httppush.Client
}

// NewClient creates a new Esplora client with the given configuration.
func NewClient(cfg *ClientConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: httppush.NewClient(cfg.RequestTimeout),
	}
}

// PushURL joins an explorer base URL with the network's push path.
func PushURL(baseURL string, params *chainreg.BitcoinNetParams) string {
	return strings.TrimRight(baseURL, "/") + params.EsploraPath
}

// doRequest performs the POST with retries on transport failures.
func (c *Client) doRequest(ctx context.Context,
	body []byte) (*httppush.Response, error) {

	var lastErr error
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Post(ctx, c.cfg.URL, contentType, body)
		if err == nil {
			return resp, nil
		}

		// Nothing changes between attempts for these.
		if errors.Is(err, httppush.ErrTLSUnavailable) ||
			errors.Is(err, httppush.ErrResponseTooLarge) {

			return nil, err
		}

		lastErr = err
		if i < c.cfg.MaxRetries {
			log.Debugf("Push to %v failed (attempt %d): %v",
				c.cfg.URL, i+1, err)

			select {
			case <-time.After(time.Duration(i+1) * 100 *
				time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if c.cfg.MaxRetries == 0 {
		return nil, lastErr
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w",
		c.cfg.MaxRetries+1, lastErr)
}

// BroadcastTransaction broadcasts a raw transaction to the network.
// Returns the txid on success.
func (c *Client) BroadcastTransaction(ctx context.Context,
	txHex string) (string, error) {

	resp, err := c.doRequest(ctx, []byte(txHex))
	if err != nil {
		return "", err
	}

	txid, err := httppush.ClassifyTxID(resp.Body)
	if err != nil {
		log.Debugf("Push to %v rejected with status %d: %v", c.cfg.URL,
			resp.StatusCode, err)

		return "", err
	}

	return txid, nil
}

// BroadcastTx broadcasts a wire.MsgTx to the network.
func (c *Client) BroadcastTx(ctx context.Context,
	tx *wire.MsgTx) (*chainhash.Hash, error) {

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize tx: %w", err)
	}

	txHex := hex.EncodeToString(buf.Bytes())
	txid, err := c.BroadcastTransaction(ctx, txHex)
	if err != nil {
		return nil, err
	}

	return chainhash.NewHashFromStr(txid)
}
