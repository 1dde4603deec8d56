package xmrto

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/xmrto-client/pkg/connection"
	"github.com/veiloq/xmrto-client/pkg/ratelimit"
)

// newTestAPI builds an API against a test server with the rate limiter
// effectively disabled.
func newTestAPI(t *testing.T, url string, version Version) *API {
	t.Helper()

	cfg := connection.DefaultConfig()
	cfg.RateLimit = ratelimit.Rate{Limit: 1000, Interval: time.Second}
	conn, err := connection.NewConnection(cfg)
	require.NoError(t, err)

	api, apiErr := NewAPI(APIOptions{URL: url, Version: string(version), Connection: conn})
	require.Nil(t, apiErr)
	return api
}

func TestNewAPIDefaults(t *testing.T) {
	api, err := NewAPI(APIOptions{})
	require.Nil(t, err)
	assert.Equal(t, V3, api.Version())
}

func TestNewAPIRejectsUnknownVersion(t *testing.T) {
	_, err := NewAPI(APIOptions{Version: "v1"})
	require.NotNil(t, err)
	assert.Equal(t, connection.KindUnsupportedAPIVersion, err.Kind)
}

func TestCreateOrderPostsVersionedPayload(t *testing.T) {
	tests := []struct {
		name     string
		version  Version
		currency Currency
		wantKeys map[string]string
	}{
		{
			name:     "v3 separates amount and currency",
			version:  V3,
			currency: CurrencyBTC,
			wantKeys: map[string]string{
				"btc_dest_address": "3K1jSVxYqzqj7c9oLKXC7uJnwgACuTEZrY",
				"amount":           "0.001",
				"amount_currency":  "BTC",
			},
		},
		{
			name:     "v2 encodes the currency in the key",
			version:  V2,
			currency: CurrencyXMR,
			wantKeys: map[string]string{
				"btc_dest_address": "3K1jSVxYqzqj7c9oLKXC7uJnwgACuTEZrY",
				"xmr_amount":       "0.001",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var gotBody map[string]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				json.NewDecoder(r.Body).Decode(&gotBody)
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"uuid": "xmrto-abc123", "state": "TO_BE_CREATED"}`))
			}))
			defer server.Close()

			api := newTestAPI(t, server.URL, tt.version)
			order, err := api.CreateOrder(context.Background(), "3K1jSVxYqzqj7c9oLKXC7uJnwgACuTEZrY", "0.001", tt.currency)

			require.Nil(t, err)
			assert.Equal(t, "/api/"+string(tt.version)+"/xmr2btc/order_create/", gotPath)
			assert.Equal(t, tt.wantKeys, gotBody)
			require.NotNil(t, order.UUID)
			assert.Equal(t, "xmrto-abc123", *order.UUID)
		})
	}
}

func TestCreateOrderValidatesArguments(t *testing.T) {
	api := newTestAPI(t, "http://127.0.0.1:1", V3)

	_, err := api.CreateOrder(context.Background(), "", "0.001", CurrencyBTC)
	require.NotNil(t, err)
	assert.Equal(t, connection.KindMissingArgument, err.Kind)

	_, err = api.CreateOrder(context.Background(), "3K1jSVxYqzqj7c9oLKXC7uJnwgACuTEZrY", "", CurrencyBTC)
	require.NotNil(t, err)
	assert.Equal(t, connection.KindMissingArgument, err.Kind)
}

func TestCreateLightningOrder(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"uuid": "xmrto-ln9", "state": "TO_BE_CREATED", "uses_lightning": true}`))
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL, V3)
	order, err := api.CreateLightningOrder(context.Background(), "lnbc20u1pvjluez")

	require.Nil(t, err)
	assert.Equal(t, map[string]string{"ln_invoice": "lnbc20u1pvjluez"}, gotBody)
	require.NotNil(t, order.UsesLightning)
	assert.True(t, *order.UsesLightning)
}

func TestOrderStatus(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"state": "PAID_UNCONFIRMED", "btc_amount": "0.001"}`))
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL, V3)
	status, err := api.OrderStatus(context.Background(), "xmrto-abc123")

	require.Nil(t, err)
	assert.Equal(t, map[string]string{"uuid": "xmrto-abc123"}, gotBody)
	require.NotNil(t, status.State)
	assert.Equal(t, StatePaidUnconfirmed, *status.State)
}

func TestOrderStatusUnknownOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "XMRTO-ERROR-006", "error_msg": "requested order not found"}`))
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL, V3)
	_, err := api.OrderStatus(context.Background(), "xmrto-gone")

	require.NotNil(t, err)
	assert.Equal(t, connection.KindAPIError, err.Kind)
	assert.NotEmpty(t, err.URL)
}

func TestConfirmPartialPayment(t *testing.T) {
	t.Run("empty body is success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		api := newTestAPI(t, server.URL, V3)
		confirmed, err := api.ConfirmPartialPayment(context.Background(), "xmrto-abc123")

		require.Nil(t, err)
		assert.True(t, confirmed)
	})

	t.Run("remote error payload fails the confirmation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "XMRTO-ERROR-012", "error_msg": "order is not underpaid"}`))
		}))
		defer server.Close()

		api := newTestAPI(t, server.URL, V3)
		confirmed, err := api.ConfirmPartialPayment(context.Background(), "xmrto-abc123")

		assert.False(t, confirmed)
		require.NotNil(t, err)
		assert.Equal(t, connection.KindAPIError, err.Kind)
	})
}

func TestCheckPricePrefersBTCAmount(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"btc_amount": "0.01", "incoming_amount_total": "0.538473", "incoming_price_btc": "0.01857101"}`))
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL, V3)
	price, err := api.CheckPrice(context.Background(), "0.01", "1.5")

	require.Nil(t, err)
	assert.Equal(t, map[string]string{"amount": "0.01", "amount_currency": "BTC"}, gotBody)
	require.NotNil(t, price.OutAmount)
	assert.Equal(t, "0.01", price.OutAmount.String())
}

func TestCheckLightningRoutes(t *testing.T) {
	t.Run("v3 queries the invoice", func(t *testing.T) {
		var gotInvoice string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotInvoice = r.URL.Query().Get("ln_invoice")
			w.Write([]byte(`{"num_routes": 2, "success_probability": 0.9}`))
		}))
		defer server.Close()

		api := newTestAPI(t, server.URL, V3)
		routes, err := api.CheckLightningRoutes(context.Background(), "lnbc20u1pvjluez")

		require.Nil(t, err)
		assert.Equal(t, "lnbc20u1pvjluez", gotInvoice)
		require.NotNil(t, routes.NumRoutes)
		assert.Equal(t, int64(2), *routes.NumRoutes)
	})

	t.Run("v2 has no route endpoint", func(t *testing.T) {
		api := newTestAPI(t, "http://127.0.0.1:1", V2)
		routes, err := api.CheckLightningRoutes(context.Background(), "lnbc20u1pvjluez")
		assert.Nil(t, routes)
		assert.Nil(t, err)
	})
}

func TestParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/xmr2btc/order_parameter_query/", r.URL.Path)
		w.Write([]byte(`{"price": "0.01857101", "upper_limit": "20.0", "lower_limit": "0.0001", "zero_conf_enabled": true}`))
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL, V3)
	params, err := api.Parameters(context.Background())

	require.Nil(t, err)
	require.NotNil(t, params.Price)
	assert.Equal(t, "0.01857101", params.Price.String())
	require.NotNil(t, params.ZeroConfEnabled)
	assert.True(t, *params.ZeroConfEnabled)
}

func TestQRCode(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "something", r.URL.Query().Get("data"))
		w.Write(png)
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL, V3)
	image, err := api.QRCode(context.Background(), "something")

	require.Nil(t, err)
	assert.Equal(t, png, image)
}

func TestNewAPIStripsTrailingSlash(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"price": "0.01857101"}`))
	}))
	defer server.Close()

	api := newTestAPI(t, server.URL+"/", V3)
	_, err := api.Parameters(context.Background())

	require.Nil(t, err)
	assert.Equal(t, "/api/v3/xmr2btc/order_parameter_query/", gotPath)
}
