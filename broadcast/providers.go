package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/btccli/btc-cli/chainreg"
	"github.com/btccli/btc-cli/esplora"
	"github.com/btccli/btc-cli/httppush"
)

const (
	formContentType = "application/x-www-form-urlencoded"
	jsonContentType = "application/json"

	// blockchainInfoSuccess is the marker blockchain.info puts in the
	// body of an accepted push.
	blockchainInfoSuccess = "Transaction Submitted"
)

// Endpoints are the base URLs of the public providers. They only change in
// tests.
type Endpoints struct {
	MempoolSpace   string
	Blockstream    string
	Blockchair     string
	BlockchainInfo string
	BlockCypher    string
}

// DefaultEndpoints returns the production provider URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		MempoolSpace:   esplora.MempoolSpaceURL,
		Blockstream:    esplora.BlockstreamURL,
		Blockchair:     "https://api.blockchair.com",
		BlockchainInfo: "https://blockchain.info",
		BlockCypher:    "https://api.blockcypher.com",
	}
}

// pushFunc pushes a transaction through one channel and returns the success
// token.
type pushFunc func(ctx context.Context, txHex string,
	rawTx []byte) (string, error)

// esploraPush returns a pushFunc posting to an Esplora push endpoint.
func (o *Orchestrator) esploraPush(pushURL string) pushFunc {
	return func(ctx context.Context, txHex string, _ []byte) (string,
		error) {

		client := esplora.NewClient(&esplora.ClientConfig{
			URL:            pushURL,
			RequestTimeout: o.cfg.HTTPTimeout,
		})

		return client.BroadcastTransaction(ctx, txHex)
	}
}

// blockchairResponse is the subset of the blockchair push answer we look at.
type blockchairResponse struct {
	Data *struct {
		TransactionHash string `json:"transaction_hash"`
	} `json:"data"`
	Context struct {
		Error string `json:"error"`
	} `json:"context"`
}

// pushBlockchair posts data=<hex> to api.blockchair.com.
func (o *Orchestrator) pushBlockchair(ctx context.Context, txHex string,
	_ []byte) (string, error) {

	pushURL := strings.TrimRight(o.cfg.Endpoints.Blockchair, "/") +
		o.cfg.Params.BlockchairPath
	form := url.Values{"data": {txHex}}

	resp, err := o.http.Post(
		ctx, pushURL, formContentType, []byte(form.Encode()),
	)
	if err != nil {
		return "", err
	}

	var answer blockchairResponse
	if err := json.Unmarshal(resp.Body, &answer); err == nil {
		if answer.Data != nil && answer.Data.TransactionHash != "" {
			return answer.Data.TransactionHash, nil
		}
		if answer.Context.Error != "" {
			return "", &httppush.ProviderError{
				Message: answer.Context.Error,
			}
		}
	}

	return "", httppush.NewProviderError(resp.Body)
}

// pushBlockchainInfo posts tx=<hex> to blockchain.info.
func (o *Orchestrator) pushBlockchainInfo(ctx context.Context, txHex string,
	_ []byte) (string, error) {

	pushURL := strings.TrimRight(o.cfg.Endpoints.BlockchainInfo, "/") +
		"/pushtx"
	form := url.Values{"tx": {txHex}}

	resp, err := o.http.Post(
		ctx, pushURL, formContentType, []byte(form.Encode()),
	)
	if err != nil {
		return "", err
	}

	if strings.Contains(string(resp.Body), blockchainInfoSuccess) {
		return blockchainInfoSuccess, nil
	}

	return "", httppush.NewProviderError(resp.Body)
}

// blockcypherRequest is the push body of api.blockcypher.com.
type blockcypherRequest struct {
	Tx string `json:"tx"`
}

// blockcypherResponse is the subset of the push answer we look at.
type blockcypherResponse struct {
	Tx *struct {
		Hash string `json:"hash"`
	} `json:"tx"`
	Error string `json:"error"`
}

// pushBlockCypher posts {"tx":"<hex>"} to api.blockcypher.com.
func (o *Orchestrator) pushBlockCypher(ctx context.Context, txHex string,
	_ []byte) (string, error) {

	pushURL := blockCypherURL(o.cfg.Endpoints.BlockCypher, o.cfg.Params)
	body, err := json.Marshal(blockcypherRequest{Tx: txHex})
	if err != nil {
		return "", err
	}

	resp, err := o.http.Post(ctx, pushURL, jsonContentType, body)
	if err != nil {
		return "", err
	}

	var answer blockcypherResponse
	if err := json.Unmarshal(resp.Body, &answer); err == nil {
		if answer.Tx != nil && answer.Tx.Hash != "" {
			return answer.Tx.Hash, nil
		}
		if answer.Error != "" {
			return "", &httppush.ProviderError{Message: answer.Error}
		}
	}

	return "", httppush.NewProviderError(resp.Body)
}

// blockCypherURL builds the push URL for the network's chain.
func blockCypherURL(baseURL string, params *chainreg.BitcoinNetParams) string {
	return strings.TrimRight(baseURL, "/") + "/v1/" +
		params.BlockCypherChain + "/txs/push"
}

// isTLSError reports whether err is the TLS stub refusing a channel.
func isTLSError(err error) bool {
	return errors.Is(err, httppush.ErrTLSUnavailable)
}
