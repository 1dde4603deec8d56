package connection

import "fmt"

// ErrorKind identifies one class of failure in the fixed taxonomy shared by
// the transport, the gateway and the lifecycle controller. Kinds are stable
// strings so callers can branch on them and logs stay greppable.
type ErrorKind string

const (
	// Transport kinds, classified from the network exchange itself.

	// KindConnectionFailed covers dial errors, request timeouts and TLS
	// failures that persist after the certificate-bundle fallback.
	KindConnectionFailed ErrorKind = "connection_failed"

	// KindResponseUnevaluable covers responses that could not be read or
	// evaluated at all.
	KindResponseUnevaluable ErrorKind = "response_unevaluable"

	// KindNoResponse marks an empty body where one was expected.
	KindNoResponse ErrorKind = "no_response"

	// KindUnexpectedStatus marks an HTTP status code outside the set the
	// remote API is known to answer with.
	KindUnexpectedStatus ErrorKind = "unexpected_status"

	// KindMalformedBody marks a body that failed to parse as JSON when
	// JSON was expected.
	KindMalformedBody ErrorKind = "malformed_body"

	// KindEndpointNotFound marks a 404 with a non-JSON body: the path does
	// not exist, as opposed to the API answering "order not found" in JSON.
	KindEndpointNotFound ErrorKind = "endpoint_not_found"

	// KindAPIError carries a business error reported by the remote API in
	// its JSON payload (rate limiting, unknown order, invalid destination).
	KindAPIError ErrorKind = "api_error"

	// Domain kinds, detected before any network call.

	// KindMissingArgument marks a required argument that was not supplied.
	KindMissingArgument ErrorKind = "missing_argument"

	// KindUnsupportedAPIVersion marks an API version this client does not
	// speak.
	KindUnsupportedAPIVersion ErrorKind = "unsupported_api_version"
)

// Error is the structured error value returned by every externally-facing
// operation of this library. It is always returned alongside a record slot;
// the record may be nil, or partially populated for KindAPIError, in which
// case its fields must not be trusted before checking the error.
type Error struct {
	Kind    ErrorKind
	Message string

	// URL is the request URL the failure belongs to; empty for domain
	// errors raised before any network call.
	URL string

	// Code is the HTTP status code, where one was received.
	Code int
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Code)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.URL)
	}
	return msg
}

// NewError builds an Error for failures that are not tied to a request URL.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
