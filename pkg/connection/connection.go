// Package connection implements the HTTP transport towards the remote order
// API. It normalizes URLs, retries exactly once with a local certificate
// bundle when TLS verification fails, and classifies every failure into the
// fixed error taxonomy defined in errors.go. Nothing in this package panics
// or returns a bare error across its boundary; callers always receive a
// Result with an optional *Error.
package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/veiloq/xmrto-client/pkg/logging"
	"github.com/veiloq/xmrto-client/pkg/ratelimit"
)

// RequestOptions controls how a response body is evaluated.
type RequestOptions struct {
	// ExpectJSON causes a non-JSON body to be classified as an error.
	// When false, a body that does not parse as JSON is returned verbatim
	// in Result.Raw (QR code images, empty-success endpoints).
	ExpectJSON bool

	// ExpectResponse causes an empty body to be classified as an error.
	// The partial-payment endpoint answers success with an empty body, so
	// its caller clears this flag.
	ExpectResponse bool
}

// Result is the outcome of one request. Exactly one of JSON and Raw is
// populated on success; Err may accompany JSON when the remote API reported
// a business error inside an otherwise well-formed payload.
type Result struct {
	JSON map[string]any
	Raw  []byte
	Err  *Error
}

// Connection issues requests against the remote API.
//
// Implementations are stateless across calls apart from connection reuse;
// headers and timeout are fixed at construction time and must not be mutated
// afterwards, which makes a Connection safe to share between trackers.
type Connection interface {
	Get(ctx context.Context, url string, opts RequestOptions) Result
	Post(ctx context.Context, url string, payload map[string]string, opts RequestOptions) Result
}

// Config holds construction-time configuration for a Connection.
type Config struct {
	// Timeout bounds every request; a request that exceeds it surfaces as
	// connection_failed.
	Timeout time.Duration

	// Certificate is the path of a local CA bundle used for the single
	// retry after a TLS verification failure. Empty disables the fallback.
	Certificate string

	// UserAgent is sent with every request.
	UserAgent string

	RateLimit ratelimit.Rate
	Logger    logging.Logger
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		UserAgent: "XmrtoProxy/0.1",
		RateLimit: ratelimit.Rate{Limit: 30, Interval: time.Minute},
		Logger:    logging.NewNopLogger(),
	}
}

type client struct {
	config   *Config
	primary  *http.Client
	fallback *http.Client
	limiter  ratelimit.RateLimiter
	logger   logging.Logger
}

// NewConnection creates a Connection. It fails only when the configured
// certificate bundle cannot be loaded.
func NewConnection(config *Config) (Connection, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = logging.NewNopLogger()
	}

	c := &client{
		config:  config,
		primary: &http.Client{Timeout: config.Timeout},
		limiter: ratelimit.NewTokenBucketLimiter(config.RateLimit),
		logger:  config.Logger,
	}

	if config.Certificate != "" {
		fallback, err := newCertificateClient(config.Certificate, config.Timeout)
		if err != nil {
			return nil, fmt.Errorf("loading certificate bundle %q: %w", config.Certificate, err)
		}
		c.fallback = fallback
	}

	return c, nil
}

// newCertificateClient builds the client used for the one retry after a TLS
// verification failure, trusting the given PEM bundle in addition to the
// system roots.
func newCertificateClient(path string, timeout time.Duration) (*http.Client, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %q", path)
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}, nil
}

// NormalizeURL forces https unless the URL points at localhost. URLs
// without a scheme get https prepended; plain http is upgraded.
func NormalizeURL(raw string) string {
	if strings.Contains(raw, "localhost") || strings.Contains(raw, "127.0.0.1") {
		return raw
	}
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "https://"):
		return raw
	case strings.HasPrefix(lower, "http://"):
		return "https://" + raw[len("http://"):]
	default:
		return "https://" + raw
	}
}

// Get implements Connection.
func (c *client) Get(ctx context.Context, url string, opts RequestOptions) Result {
	return c.request(ctx, http.MethodGet, url, nil, opts)
}

// Post implements Connection. The payload is sent as a JSON body.
func (c *client) Post(ctx context.Context, url string, payload map[string]string, opts RequestOptions) Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Err: &Error{
			Kind:    KindResponseUnevaluable,
			Message: fmt.Sprintf("marshaling request payload: %v", err),
			URL:     NormalizeURL(url),
		}}
	}
	return c.request(ctx, http.MethodPost, url, body, opts)
}

func (c *client) request(ctx context.Context, method, url string, body []byte, opts RequestOptions) Result {
	url = NormalizeURL(url)

	if err := c.limiter.Wait(ctx); err != nil {
		return Result{Err: &Error{
			Kind:    KindConnectionFailed,
			Message: err.Error(),
			URL:     url,
		}}
	}

	c.logger.Debug("issuing request",
		logging.String("method", method),
		logging.String("url", url),
	)

	httpClient := c.primary
	var resp *http.Response

	err := retry.Do(
		func() error {
			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, url, reader)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", c.config.UserAgent)
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err = httpClient.Do(req)
			return err
		},
		retry.Attempts(2),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return c.fallback != nil && isCertificateError(err)
		}),
		retry.OnRetry(func(_ uint, err error) {
			c.logger.Debug("tls verification failed, retrying with local certificate bundle",
				logging.String("certificate", c.config.Certificate),
				logging.Error(err),
			)
			httpClient = c.fallback
		}),
	)
	if err != nil {
		remoteErr := &Error{
			Kind:    KindConnectionFailed,
			Message: err.Error(),
			URL:     url,
		}
		c.logger.Error("request failed", logging.String("url", url), logging.Error(remoteErr))
		return Result{Err: remoteErr}
	}
	defer resp.Body.Close()

	return c.evaluate(resp, url, opts)
}

// allowedStatus is the set of HTTP status codes the remote API answers with
// meaningfully: success, created, plus the codes it uses for its own error
// payloads (invalid parameters, rate limit, order not found).
var allowedStatus = map[int]bool{
	http.StatusOK:         true,
	http.StatusCreated:    true,
	http.StatusBadRequest: true,
	http.StatusForbidden:  true,
	http.StatusNotFound:   true,
}

func (c *client) evaluate(resp *http.Response, url string, opts RequestOptions) Result {
	c.logger.Debug("received response",
		logging.String("url", url),
		logging.Int("status", resp.StatusCode),
	)

	if !allowedStatus[resp.StatusCode] {
		return Result{Err: &Error{
			Kind:    KindUnexpectedStatus,
			Message: fmt.Sprintf("received HTTP status code %d", resp.StatusCode),
			URL:     url,
			Code:    resp.StatusCode,
		}}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Err: &Error{
			Kind:    KindResponseUnevaluable,
			Message: fmt.Sprintf("reading response body: %v", err),
			URL:     url,
			Code:    resp.StatusCode,
		}}
	}

	if len(body) == 0 {
		if !opts.ExpectResponse {
			c.logger.Debug("empty response body, none expected", logging.String("url", url))
			return Result{Raw: body}
		}
		return Result{Err: &Error{
			Kind:    KindNoResponse,
			Message: "missing HTTP response from server",
			URL:     url,
			Code:    resp.StatusCode,
		}}
	}

	// The remote wraps its business errors in JSON regardless of the
	// endpoint, so parsing is attempted even when JSON is not expected.
	payload, jsonErr := decodeJSON(body)
	if jsonErr != nil {
		if !opts.ExpectJSON {
			return Result{Raw: body}
		}
		if resp.StatusCode == http.StatusNotFound {
			return Result{Err: &Error{
				Kind:    KindEndpointNotFound,
				Message: fmt.Sprintf("received HTTP status code %d", resp.StatusCode),
				URL:     url,
				Code:    resp.StatusCode,
			}}
		}
		return Result{Err: &Error{
			Kind:    KindMalformedBody,
			Message: fmt.Sprintf("expected JSON, got something else: %v", jsonErr),
			URL:     url,
			Code:    resp.StatusCode,
		}}
	}

	if remoteErr := apiError(payload, url, resp.StatusCode); remoteErr != nil {
		c.logger.Error("remote API error", logging.String("url", url), logging.Error(remoteErr))
		return Result{JSON: payload, Err: remoteErr}
	}

	return Result{JSON: payload}
}

// decodeJSON parses a JSON object keeping numbers as json.Number so that
// decimal amounts never round-trip through float64.
func decodeJSON(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// apiError extracts a remote business error from a parsed payload. The API
// reports errors as {"error": ..., "error_msg": ...} next to whatever other
// fields it could still fill in.
func apiError(payload map[string]any, url string, code int) *Error {
	errVal, ok := payload["error"]
	if !ok || errVal == nil {
		return nil
	}

	message := fmt.Sprintf("%v", errVal)
	if errMsg, ok := payload["error_msg"]; ok && errMsg != nil {
		message = fmt.Sprintf("%v: %v", errVal, errMsg)
	}

	return &Error{
		Kind:    KindAPIError,
		Message: message,
		URL:     url,
		Code:    code,
	}
}

// isCertificateError reports whether the request failed on TLS certificate
// verification, the one condition worth a retry with the local bundle.
func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		return true
	}
	var hostname x509.HostnameError
	return errors.As(err, &hostname)
}
