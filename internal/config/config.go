package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DBPath   string `envconfig:"SATPAY_DB_PATH" default:"./data/satpay.sqlite"`
	Port     int    `envconfig:"SATPAY_PORT" default:"8080"`
	LogLevel string `envconfig:"SATPAY_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"SATPAY_LOG_DIR" default:"./logs"`
	Network  string `envconfig:"SATPAY_NETWORK" default:"regtest"`

	// StoreAddress is the receiving address for the configured network.
	// Overrides the registry default when set.
	StoreAddress string `envconfig:"SATPAY_STORE_ADDRESS"`

	// IndexerURL overrides the registry's default indexer base URL for the
	// configured network (useful for self-hosted Esplora instances).
	IndexerURL string `envconfig:"SATPAY_INDEXER_URL"`

	// SignerNetwork is the network name presented to wallet extensions.
	// Some extension allow-lists reject "regtest"; pointing this at
	// "testnet" keeps the indexer on regtest while satisfying the signer.
	SignerNetwork string `envconfig:"SATPAY_SIGNER_NETWORK"`

	// AllowedOrigin is the storefront origin allowed by CORS. "*" permits
	// any origin, which is fine for purely public read endpoints.
	AllowedOrigin string `envconfig:"SATPAY_ALLOWED_ORIGIN" default:"*"`

	FeeRateSatPerVB   int64 `envconfig:"SATPAY_FEE_RATE" default:"2"`
	SigningTimeoutSec int   `envconfig:"SATPAY_SIGNING_TIMEOUT_SEC" default:"30"`
	VerifyPollSec     int   `envconfig:"SATPAY_VERIFY_POLL_SEC" default:"4"`
	VerifyCeilingSec  int   `envconfig:"SATPAY_VERIFY_CEILING_SEC" default:"600"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// Load .env file if it exists. godotenv does NOT override already-set env vars,
	// so real environment variables take precedence over .env values.
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	switch c.Network {
	case "mainnet", "testnet", "testnet4", "signet", "regtest":
	default:
		return fmt.Errorf("%w: network must be one of mainnet, testnet, testnet4, signet, regtest; got %q", ErrInvalidConfig, c.Network)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.FeeRateSatPerVB < 1 {
		return fmt.Errorf("%w: fee rate must be at least 1 sat/vB, got %d", ErrInvalidConfig, c.FeeRateSatPerVB)
	}
	if c.SigningTimeoutSec < 1 {
		return fmt.Errorf("%w: signing timeout must be positive, got %d", ErrInvalidConfig, c.SigningTimeoutSec)
	}
	if c.VerifyPollSec < 1 || c.VerifyCeilingSec < c.VerifyPollSec {
		return fmt.Errorf("%w: verify poll %ds / ceiling %ds out of range", ErrInvalidConfig, c.VerifyPollSec, c.VerifyCeilingSec)
	}
	return nil
}
