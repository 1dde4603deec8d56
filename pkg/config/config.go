// Package config loads process configuration from environment variables.
// It runs once at startup; the client packages receive plain values and
// never read the environment themselves.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the CLI can take from the environment. Flags
// override these values per invocation.
type Config struct {
	// URL is the base URL of the remote exchange.
	URL string `env:"XMRTO_URL" envDefault:"https://xmr.to"`

	// APIVersion selects the remote schema version.
	APIVersion string `env:"API_VERSION" envDefault:"v3"`

	// DestinationAddress is the BTC payout address for new orders.
	DestinationAddress string `env:"BTC_ADDRESS"`

	// LightningInvoice is the invoice for lightning orders and route checks.
	LightningInvoice string `env:"LN_INVOICE"`

	BTCAmount string `env:"BTC_AMOUNT"`
	XMRAmount string `env:"XMR_AMOUNT"`

	// Certificate is a local CA bundle path for the TLS fallback retry.
	Certificate string `env:"XMRTO_CERTIFICATE"`

	// QRData is the payload for the qrcode subcommand.
	QRData string `env:"QR_DATA"`

	// SecretKey is the identity token of an existing order.
	SecretKey string `env:"SECRET_KEY"`
}

// Load reads the configuration from the environment, honoring a .env file
// in the working directory when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
