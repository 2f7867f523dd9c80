package httppush

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const testTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7" +
	"afdeda33b"

func TestPost(t *testing.T) {
	t.Parallel()

	type request struct {
		body, contentType string
		close             bool
	}
	requests := make(chan request, 1)

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			requests <- request{
				body:        string(body),
				contentType: r.Header.Get("Content-Type"),
				close:       r.Close,
			}

			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("bad things\n"))
		},
	))
	defer server.Close()

	client := NewClient(0)
	resp, err := client.Post(
		context.Background(), server.URL+"/api/tx", "text/plain",
		[]byte("0100"),
	)
	require.NoError(t, err)

	// The status doesn't turn into an error, the body is what counts.
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "bad things\n", string(resp.Body))

	got := <-requests
	require.Equal(t, "0100", got.body)
	require.Equal(t, "text/plain", got.contentType)
	require.True(t, got.close)
}

// TestPostHTTPSRejected makes sure https never reaches the network.
func TestPostHTTPSRejected(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		},
	))
	defer server.Close()

	client := NewClient(0)
	_, err := client.Post(
		context.Background(), server.URL, "text/plain", nil,
	)
	require.ErrorIs(t, err, ErrTLSUnavailable)
	require.ErrorContains(t, err, "TLS not available")
	require.Zero(t, hits.Load())
}

func TestPostRedirectToHTTPS(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(
				w, r, "https://example.invalid/api/tx",
				http.StatusTemporaryRedirect,
			)
		},
	))
	defer server.Close()

	_, err := NewClient(0).Post(
		context.Background(), server.URL, "text/plain", nil,
	)
	require.ErrorIs(t, err, ErrTLSUnavailable)
}

func TestPostResponseTooLarge(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(
				[]byte(strings.Repeat("a", MaxResponseSize+10)),
			)
		},
	))
	defer server.Close()

	_, err := NewClient(0).Post(
		context.Background(), server.URL, "text/plain", nil,
	)
	require.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestParseURL(t *testing.T) {
	t.Parallel()

	u, err := ParseURL("localhost:3002")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3002/", u.String())

	_, err = ParseURL("https://mempool.space/api/tx")
	require.ErrorIs(t, err, ErrTLSUnavailable)

	_, err = ParseURL("ftp://example.com")
	require.Error(t, err)
}

func TestClassifyTxID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		txid    string
		wantErr error
		message string
	}{
		{
			name: "txid",
			body: testTxID,
			txid: testTxID,
		},
		{
			name: "txid with newline",
			body: "  " + testTxID + "\r\n",
			txid: testTxID,
		},
		{
			name:    "provider error",
			body:    "sendrawtransaction RPC error: bad-txns-inputs",
			message: "sendrawtransaction RPC error: bad-txns-inputs",
		},
		{
			name:    "64 chars that are not hex",
			body:    strings.Repeat("z", 64),
			message: strings.Repeat("z", 64),
		},
		{
			name:    "empty",
			body:    " \n",
			wantErr: ErrNoResponse,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			txid, err := ClassifyTxID([]byte(tc.body))
			switch {
			case tc.txid != "":
				require.NoError(t, err)
				require.Equal(t, tc.txid, txid)

			case tc.wantErr != nil:
				require.ErrorIs(t, err, tc.wantErr)

			default:
				var provErr *ProviderError
				require.ErrorAs(t, err, &provErr)
				require.Equal(t, tc.message, provErr.Message)
			}
		})
	}
}

func TestProviderErrorBounded(t *testing.T) {
	t.Parallel()

	err := NewProviderError([]byte(strings.Repeat("x", 1000)))
	require.Len(t, err.Error(), maxErrorMessage)
}
