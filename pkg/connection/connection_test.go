package connection

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/xmrto-client/pkg/ratelimit"
)

// testConfig keeps the rate limit out of the way so tests run fast.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimit = ratelimit.Rate{Limit: 1000, Interval: time.Second}
	return cfg
}

func newTestConnection(t *testing.T) Connection {
	t.Helper()
	conn, err := NewConnection(testConfig())
	require.NoError(t, err)
	return conn
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare host gets https", "xmr.to", "https://xmr.to"},
		{"http is upgraded", "http://xmr.to", "https://xmr.to"},
		{"https untouched", "https://xmr.to", "https://xmr.to"},
		{"localhost untouched", "http://localhost:8080", "http://localhost:8080"},
		{"loopback untouched", "http://127.0.0.1:8080/api", "http://127.0.0.1:8080/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestGetParsesJSONPreservingNumbers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"btc_amount": 0.009990000000, "state": "UNPAID"}`))
	}))
	defer server.Close()

	conn := newTestConnection(t)
	res := conn.Get(context.Background(), server.URL, RequestOptions{ExpectJSON: true, ExpectResponse: true})

	require.Nil(t, res.Err)
	require.NotNil(t, res.JSON)
	assert.Equal(t, "UNPAID", res.JSON["state"])

	// Amounts must survive as wire text, not as float64.
	num, ok := res.JSON["btc_amount"].(json.Number)
	require.True(t, ok, "expected json.Number, got %T", res.JSON["btc_amount"])
	assert.Equal(t, "0.009990000000", num.String())
}

func TestPostSendsJSONBodyAndUserAgent(t *testing.T) {
	var gotAgent, gotContentType string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"uuid": "xmrto-abc123"}`))
	}))
	defer server.Close()

	conn := newTestConnection(t)
	res := conn.Post(context.Background(), server.URL, map[string]string{"uuid": "xmrto-abc123"}, RequestOptions{ExpectJSON: true, ExpectResponse: true})

	require.Nil(t, res.Err)
	assert.Equal(t, "XmrtoProxy/0.1", gotAgent)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, map[string]string{"uuid": "xmrto-abc123"}, gotBody)
}

func TestUnexpectedStatusCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"state": "UNPAID"}`))
	}))
	defer server.Close()

	conn := newTestConnection(t)
	res := conn.Get(context.Background(), server.URL, RequestOptions{ExpectJSON: true, ExpectResponse: true})

	require.NotNil(t, res.Err)
	assert.Equal(t, KindUnexpectedStatus, res.Err.Kind)
	assert.Equal(t, http.StatusBadGateway, res.Err.Code)
	assert.Nil(t, res.JSON)
}

func TestAllowedErrorStatusCodesStillEvaluated(t *testing.T) {
	// 400, 403 and 404 carry the remote's own error payloads and must be
	// parsed, not rejected on status alone.
	for _, code := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
			w.Write([]byte(`{"error": "XMRTO-ERROR-006", "error_msg": "requested order not found"}`))
		}))

		conn := newTestConnection(t)
		res := conn.Get(context.Background(), server.URL, RequestOptions{ExpectJSON: true, ExpectResponse: true})
		server.Close()

		require.NotNil(t, res.Err, "status %d", code)
		assert.Equal(t, KindAPIError, res.Err.Kind, "status %d", code)
		assert.Contains(t, res.Err.Message, "XMRTO-ERROR-006")
		assert.Contains(t, res.Err.Message, "requested order not found")

		// The payload is returned alongside the error.
		require.NotNil(t, res.JSON)
		assert.Equal(t, "XMRTO-ERROR-006", res.JSON["error"])
	}
}

func TestNotFoundWithNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<html>not found</html>"))
	}))
	defer server.Close()

	conn := newTestConnection(t)
	res := conn.Get(context.Background(), server.URL, RequestOptions{ExpectJSON: true, ExpectResponse: true})

	require.NotNil(t, res.Err)
	assert.Equal(t, KindEndpointNotFound, res.Err.Kind)
	assert.Equal(t, http.StatusNotFound, res.Err.Code)
}

func TestMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer server.Close()

	conn := newTestConnection(t)
	res := conn.Get(context.Background(), server.URL, RequestOptions{ExpectJSON: true, ExpectResponse: true})

	require.NotNil(t, res.Err)
	assert.Equal(t, KindMalformedBody, res.Err.Kind)
}

func TestNonJSONBodyReturnedRawWhenJSONNotExpected(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(png)
	}))
	defer server.Close()

	conn := newTestConnection(t)
	res := conn.Get(context.Background(), server.URL, RequestOptions{ExpectJSON: false, ExpectResponse: true})

	require.Nil(t, res.Err)
	assert.Equal(t, png, res.Raw)
}

func TestEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	conn := newTestConnection(t)

	t.Run("error when a response is expected", func(t *testing.T) {
		res := conn.Get(context.Background(), server.URL, RequestOptions{ExpectJSON: true, ExpectResponse: true})
		require.NotNil(t, res.Err)
		assert.Equal(t, KindNoResponse, res.Err.Kind)
	})

	t.Run("success when none is expected", func(t *testing.T) {
		res := conn.Post(context.Background(), server.URL, map[string]string{"uuid": "xmrto-abc123"}, RequestOptions{})
		assert.Nil(t, res.Err)
	})
}

func TestConnectionFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // refuse connections from now on

	conn := newTestConnection(t)
	res := conn.Get(context.Background(), url, RequestOptions{ExpectJSON: true, ExpectResponse: true})

	require.NotNil(t, res.Err)
	assert.Equal(t, KindConnectionFailed, res.Err.Kind)
	assert.Equal(t, url, res.Err.URL)
}

func TestCertificateFallbackRetry(t *testing.T) {
	var handlerCalls int32
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&handlerCalls, 1)
		w.Write([]byte(`{"state": "UNPAID"}`))
	}))
	server.StartTLS()
	defer server.Close()

	// The server's self-signed certificate becomes the local bundle the
	// fallback client trusts.
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	bundle := filepath.Join(t.TempDir(), "bundle.pem")
	require.NoError(t, os.WriteFile(bundle, pemBytes, 0o600))

	cfg := testConfig()
	cfg.Certificate = bundle
	conn, err := NewConnection(cfg)
	require.NoError(t, err)

	// The primary client fails TLS verification; the retry with the
	// bundle-backed client must reach the handler exactly once.
	res := conn.Get(context.Background(), server.URL, RequestOptions{ExpectJSON: true, ExpectResponse: true})

	require.Nil(t, res.Err)
	assert.Equal(t, "UNPAID", res.JSON["state"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&handlerCalls))
}

func TestCertificateFailureWithoutBundle(t *testing.T) {
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state": "UNPAID"}`))
	}))
	server.StartTLS()
	defer server.Close()

	// No bundle configured: the verification failure is not retried and
	// surfaces as connection_failed.
	conn := newTestConnection(t)
	res := conn.Get(context.Background(), server.URL, RequestOptions{ExpectJSON: true, ExpectResponse: true})

	require.NotNil(t, res.Err)
	assert.Equal(t, KindConnectionFailed, res.Err.Kind)
}

func TestNewConnectionRejectsMissingCertificate(t *testing.T) {
	cfg := testConfig()
	cfg.Certificate = "/nonexistent/bundle.pem"

	_, err := NewConnection(cfg)
	assert.Error(t, err)
}

func TestErrorString(t *testing.T) {
	err := &Error{
		Kind:    KindUnexpectedStatus,
		Message: "received HTTP status code 502",
		URL:     "https://xmr.to/api/v3/xmr2btc/order_status_query/",
		Code:    502,
	}
	assert.Contains(t, err.Error(), string(KindUnexpectedStatus))
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "https://xmr.to")
}
