package xmrto

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/veiloq/xmrto-client/pkg/connection"
	"github.com/veiloq/xmrto-client/pkg/logging"
)

// DefaultURL is the production endpoint of the remote exchange.
const DefaultURL = "https://xmr.to"

// Currency selects which side of the conversion an amount refers to.
type Currency string

const (
	CurrencyBTC Currency = "BTC"
	CurrencyXMR Currency = "XMR"
)

// Endpoint paths, versioned by the API version segment.
const (
	createOrderEndpoint     = "/api/%s/xmr2btc/order_create/"
	createLNOrderEndpoint   = "/api/%s/xmr2btc/order_create_ln/"
	orderStatusEndpoint     = "/api/%s/xmr2btc/order_status_query/"
	checkPriceEndpoint      = "/api/%s/xmr2btc/order_check_price/"
	checkLNRoutesEndpoint   = "/api/%s/xmr2btc/order_ln_check_route/"
	checkParametersEndpoint = "/api/%s/xmr2btc/order_parameter_query/"
	partialPaymentEndpoint  = "/api/%s/xmr2btc/order_partial_payment/"
	qrCodeEndpoint          = "/api/%s/xmr2btc/gen_qrcode"
)

// APIOptions configures an API gateway.
type APIOptions struct {
	// URL is the base URL of the remote; DefaultURL when empty. A single
	// trailing slash is stripped here, once, so endpoint concatenation
	// stays trivial everywhere else.
	URL string

	// Version is the API schema version, "v2" or "v3"; DefaultVersion
	// when empty.
	Version string

	// Certificate is an optional local CA bundle path for the TLS
	// verification fallback.
	Certificate string

	// Timeout bounds each request; the transport default applies when
	// zero.
	Timeout time.Duration

	Logger logging.Logger

	// Connection overrides the default transport. Used by tests; normal
	// callers leave it nil.
	Connection connection.Connection
}

// API composes the transport and the version adapter into one logical
// operation per remote endpoint. It is stateless; all order state lives in
// the Tracker.
type API struct {
	url     string
	version Version
	conn    connection.Connection
	logger  logging.Logger
}

// NewAPI creates a gateway for one base URL and API version.
func NewAPI(opts APIOptions) (*API, *connection.Error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Version == "" {
		opts.Version = string(DefaultVersion)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	version, parseErr := ParseVersion(opts.Version)
	if parseErr != nil {
		return nil, parseErr
	}

	baseURL := opts.URL
	if last := len(baseURL) - 1; baseURL[last] == '/' {
		baseURL = baseURL[:last]
	}

	conn := opts.Connection
	if conn == nil {
		config := connection.DefaultConfig()
		config.Certificate = opts.Certificate
		config.Logger = opts.Logger
		if opts.Timeout > 0 {
			config.Timeout = opts.Timeout
		}

		var err error
		conn, err = connection.NewConnection(config)
		if err != nil {
			return nil, &connection.Error{
				Kind:    connection.KindConnectionFailed,
				Message: err.Error(),
			}
		}
	}

	return &API{
		url:     baseURL,
		version: version,
		conn:    conn,
		logger:  opts.Logger,
	}, nil
}

// Version returns the API schema version this gateway speaks.
func (a *API) Version() Version {
	return a.version
}

func (a *API) endpoint(format string) string {
	return a.url + fmt.Sprintf(format, a.version)
}

// amountKeys returns the version-specific post keys carrying an amount and
// its currency. v2 encodes the currency in the key name, v3 sends it as a
// separate field.
func (a *API) amountKeys(amount string, currency Currency) map[string]string {
	keys := map[string]string{}
	switch a.version {
	case V2:
		amountKey := "btc_amount"
		if currency == CurrencyXMR {
			amountKey = "xmr_amount"
		}
		keys[amountKey] = amount
	case V3:
		keys["amount"] = amount
		keys["amount_currency"] = string(currency)
	}
	return keys
}

// withURL stamps the request URL onto an adapter-built error.
func withURL(err *connection.Error, url string) *connection.Error {
	if err != nil && err.URL == "" {
		err.URL = url
	}
	return err
}

// pickError prefers the transport's classification, which already carries
// the URL, over the adapter's view of the same payload.
func pickError(transportErr, adapterErr *connection.Error, url string) *connection.Error {
	if transportErr != nil {
		return transportErr
	}
	return withURL(adapterErr, url)
}

// CreateOrder creates a standard order paying out to a BTC address.
func (a *API) CreateOrder(ctx context.Context, outAddress, outAmount string, currency Currency) (*Order, *connection.Error) {
	if outAddress == "" {
		return nil, connection.NewError(connection.KindMissingArgument, "destination address is required")
	}
	if outAmount == "" {
		return nil, connection.NewError(connection.KindMissingArgument, "an amount in BTC or XMR is required")
	}

	endpoint := a.endpoint(createOrderEndpoint)
	postdata := map[string]string{"btc_dest_address": outAddress}
	for k, v := range a.amountKeys(outAmount, currency) {
		postdata[k] = v
	}

	res := a.conn.Post(ctx, endpoint, postdata, connection.RequestOptions{ExpectJSON: true, ExpectResponse: true})
	order, adapterErr := BuildOrder(res.JSON, a.version)
	return order, pickError(res.Err, adapterErr, endpoint)
}

// CreateLightningOrder creates an order paying out a lightning invoice.
// v3 only on the remote side; v2 answers with its own error payload.
func (a *API) CreateLightningOrder(ctx context.Context, lnInvoice string) (*Order, *connection.Error) {
	if lnInvoice == "" {
		return nil, connection.NewError(connection.KindMissingArgument, "lightning invoice is required")
	}

	endpoint := a.endpoint(createLNOrderEndpoint)
	postdata := map[string]string{"ln_invoice": lnInvoice}

	res := a.conn.Post(ctx, endpoint, postdata, connection.RequestOptions{ExpectJSON: true, ExpectResponse: true})
	order, adapterErr := BuildOrder(res.JSON, a.version)
	return order, pickError(res.Err, adapterErr, endpoint)
}

// OrderStatus queries the current status of an order by its secret key.
func (a *API) OrderStatus(ctx context.Context, uuid string) (*Status, *connection.Error) {
	if uuid == "" {
		return nil, connection.NewError(connection.KindMissingArgument, "order secret key is required")
	}

	endpoint := a.endpoint(orderStatusEndpoint)
	postdata := map[string]string{"uuid": uuid}

	res := a.conn.Post(ctx, endpoint, postdata, connection.RequestOptions{ExpectJSON: true, ExpectResponse: true})
	status, adapterErr := BuildStatus(res.JSON, a.version)
	return status, pickError(res.Err, adapterErr, endpoint)
}

// ConfirmPartialPayment asks the remote to settle an underpaid order at the
// partially-paid amount. Success is an empty body.
func (a *API) ConfirmPartialPayment(ctx context.Context, uuid string) (bool, *connection.Error) {
	if uuid == "" {
		return false, connection.NewError(connection.KindMissingArgument, "order secret key is required")
	}

	endpoint := a.endpoint(partialPaymentEndpoint)
	postdata := map[string]string{"uuid": uuid}

	res := a.conn.Post(ctx, endpoint, postdata, connection.RequestOptions{ExpectJSON: false, ExpectResponse: false})
	if res.Err != nil {
		return false, res.Err
	}
	return true, nil
}

// CheckPrice quotes the conversion for an amount in exactly one currency.
// A BTC amount wins when both are given, matching the remote's tooling.
func (a *API) CheckPrice(ctx context.Context, btcAmount, xmrAmount string) (*Price, *connection.Error) {
	if btcAmount == "" && xmrAmount == "" {
		return nil, connection.NewError(connection.KindMissingArgument, "an amount in BTC or XMR is required")
	}

	amount, currency := btcAmount, CurrencyBTC
	if btcAmount == "" {
		amount, currency = xmrAmount, CurrencyXMR
	}

	endpoint := a.endpoint(checkPriceEndpoint)
	postdata := a.amountKeys(amount, currency)

	res := a.conn.Post(ctx, endpoint, postdata, connection.RequestOptions{ExpectJSON: true, ExpectResponse: true})
	price, adapterErr := BuildPrice(res.JSON, a.version)
	return price, pickError(res.Err, adapterErr, endpoint)
}

// CheckLightningRoutes reports route feasibility for a lightning invoice.
// Not applicable under v2: (nil, nil).
func (a *API) CheckLightningRoutes(ctx context.Context, lnInvoice string) (*Routes, *connection.Error) {
	if lnInvoice == "" {
		return nil, connection.NewError(connection.KindMissingArgument, "lightning invoice is required")
	}
	if a.version == V2 {
		return nil, nil
	}

	endpoint := a.endpoint(checkLNRoutesEndpoint) + "?ln_invoice=" + url.QueryEscape(lnInvoice)

	res := a.conn.Get(ctx, endpoint, connection.RequestOptions{ExpectJSON: true, ExpectResponse: true})
	routes, adapterErr := BuildRoutes(res.JSON, a.version)
	return routes, pickError(res.Err, adapterErr, endpoint)
}

// Parameters fetches the exchange-wide order limits and zero-conf policy.
func (a *API) Parameters(ctx context.Context) (*Parameters, *connection.Error) {
	endpoint := a.endpoint(checkParametersEndpoint)

	res := a.conn.Get(ctx, endpoint, connection.RequestOptions{ExpectJSON: true, ExpectResponse: true})
	parameters, adapterErr := BuildParameters(res.JSON, a.version)
	return parameters, pickError(res.Err, adapterErr, endpoint)
}

// QRCode fetches the PNG image encoding the given data as a QR code. The
// bytes are returned verbatim; persisting them is the caller's business.
func (a *API) QRCode(ctx context.Context, data string) ([]byte, *connection.Error) {
	if data == "" {
		return nil, connection.NewError(connection.KindMissingArgument, "data to encode is required")
	}

	endpoint := a.endpoint(qrCodeEndpoint) + "?data=" + url.QueryEscape(data)

	res := a.conn.Get(ctx, endpoint, connection.RequestOptions{ExpectJSON: false, ExpectResponse: true})
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Raw, nil
}
