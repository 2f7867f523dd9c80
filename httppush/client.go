// Package httppush is a small plain-HTTP client used to push transactions to
// block explorer APIs. TLS is not available, so HTTPS endpoints are rejected
// before any connection is made.
package httppush

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/btccli/btc-cli/btchash"
)

const (
	// DefaultTimeout bounds a whole request, connect to last body byte.
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize is the largest response body read.
	MaxResponseSize = 1 << 20

	// maxErrorMessage bounds the provider message kept in an error.
	maxErrorMessage = 256
)

var (
	// ErrTLSUnavailable is returned for every https URL.
	ErrTLSUnavailable = errors.New("TLS not available")

	// ErrNoResponse is returned when the provider answered with an empty
	// body.
	ErrNoResponse = errors.New("no response")

	// ErrResponseTooLarge is returned when the body exceeds
	// MaxResponseSize.
	ErrResponseTooLarge = errors.New("response too large")
)

// ProviderError carries the message a provider returned instead of a
// success.
type ProviderError struct {
	Message string
}

// Error returns the provider's message.
func (e *ProviderError) Error() string {
	return e.Message
}

// NewProviderError trims and bounds a provider response into an error.
func NewProviderError(body []byte) error {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return ErrNoResponse
	}
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage]
	}

	return &ProviderError{Message: msg}
}

// Response is the outcome of a POST.
type Response struct {
	// StatusCode is the HTTP status. Providers are judged by the body
	// alone, the status is informational.
	StatusCode int

	// Body is the response body.
	Body []byte
}

// Client issues single-shot POST requests.
type Client struct {
	httpClient *http.Client
}

// NewClient returns a client whose requests are bounded by timeout. A zero
// timeout selects DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DisableKeepAlives: true,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:       timeout,
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
	}
}

// checkRedirect refuses redirects that would need TLS.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if req.URL.Scheme == "https" {
		return ErrTLSUnavailable
	}
	if len(via) >= 5 {
		return errors.New("too many redirects")
	}

	return nil
}

// ParseURL normalizes a push URL: a missing scheme means http, and only
// http is accepted. An https URL yields ErrTLSUnavailable.
func ParseURL(rawURL string) (*url.URL, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "http":
	case "https":
		return nil, ErrTLSUnavailable
	default:
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	if u.Path == "" {
		u.Path = "/"
	}

	return u, nil
}

// Post sends body to rawURL and returns the response body. The connection is
// closed after the exchange.
func (c *Client) Post(ctx context.Context, rawURL, contentType string,
	body []byte) (*Response, error) {

	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, u.String(), bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Close = true
	req.Header.Set("Content-Type", contentType)

	log.Debugf("POST %v (%s, %d bytes)", u.Redacted(), contentType,
		len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrTLSUnavailable) {
			return nil, ErrTLSUnavailable
		}

		return nil, fmt.Errorf("HTTP POST failed: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, MaxResponseSize+1)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(respBody) > MaxResponseSize {
		return nil, ErrResponseTooLarge
	}

	log.Debugf("POST %v answered %d (%d bytes)", u.Redacted(),
		resp.StatusCode, len(respBody))

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}, nil
}

// ClassifyTxID applies the generic provider convention: a body that is a 64
// character hex string is the txid, any other non-empty body is the
// provider's error and an empty body means no response.
func ClassifyTxID(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if btchash.IsTxIDHex(trimmed) {
		return trimmed, nil
	}

	return "", NewProviderError(body)
}
