package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"billrails/internal/chain"

	"github.com/ethereum/go-ethereum/common"
)

// DeploymentConfig represents deployments.json: the single supported chain,
// the bill payment contract and the accepted paying tokens.
type DeploymentConfig struct {
	ChainID   int64 `json:"chainId"`
	Contracts struct {
		BillPayment string `json:"BillPayment"`
	} `json:"contracts"`
	Tokens []TokenConfig `json:"tokens"`
}

type TokenConfig struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address,omitempty"`
	Native   bool   `json:"native,omitempty"`
	Decimals int    `json:"decimals"`
}

type ServiceConfig struct {
	HTTPPort      int
	HMACSecret    string
	HMACClockSkew time.Duration
	SessionPath   string
}

type ChainConfig struct {
	RPCURL     string
	PrivateKey string
}

type BillerConfig struct {
	BaseURL string
	Secret  string
	Timeout time.Duration
}

type PricefeedConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type LimitsConfig struct {
	MinAmount int64
	MaxAmount int64
}

type DatabaseConfig struct {
	DSN string
}

// AppConfig ties together deployment info and environment-derived values.
type AppConfig struct {
	Deployment DeploymentConfig
	Service    ServiceConfig
	Chain      ChainConfig
	Biller     BillerConfig
	Pricefeed  PricefeedConfig
	Limits     LimitsConfig
	Database   DatabaseConfig
}

const defaultDeploymentsPath = "deployments.json"

// Load aggregates configuration from disk and environment.
func Load() (*AppConfig, error) {
	deploymentsPath := envOr("DEPLOYMENTS_PATH", defaultDeploymentsPath)
	deployCfg, err := loadDeployments(deploymentsPath)
	if err != nil {
		return nil, fmt.Errorf("load deployments: %w", err)
	}

	return &AppConfig{
		Deployment: *deployCfg,
		Service: ServiceConfig{
			HTTPPort:      envOrInt("API_HTTP_PORT", 3000),
			HMACSecret:    envOr("API_HMAC_SECRET", ""),
			HMACClockSkew: envOrDur("HMAC_CLOCK_SKEW", time.Minute),
			SessionPath:   envOr("SESSION_PATH", filepath.Join(os.TempDir(), "billrails-session.json")),
		},
		Chain: ChainConfig{
			RPCURL:     envOr("CHAIN_RPC_URL", ""),
			PrivateKey: envOr("CHAIN_PRIVATE_KEY", ""),
		},
		Biller: BillerConfig{
			BaseURL: envOr("BILLER_BASE_URL", ""),
			Secret:  envOr("BILLER_HMAC_SECRET", ""),
			Timeout: envOrDur("BILLER_TIMEOUT", 30*time.Second),
		},
		Pricefeed: PricefeedConfig{
			BaseURL:  envOr("PRICEFEED_BASE_URL", ""),
			Timeout:  envOrDur("PRICEFEED_TIMEOUT", 10*time.Second),
			CacheTTL: envOrDur("PRICEFEED_CACHE_TTL", 30*time.Second),
		},
		Limits: LimitsConfig{
			MinAmount: envOrInt64("PURCHASE_MIN_AMOUNT", 100),
			MaxAmount: envOrInt64("PURCHASE_MAX_AMOUNT", 50_000),
		},
		Database: DatabaseConfig{
			DSN: envOr("DATABASE_URL", ""),
		},
	}, nil
}

// Tokens maps the configured paying tokens into chain descriptors.
func (c *AppConfig) Tokens() map[string]chain.Token {
	out := make(map[string]chain.Token, len(c.Deployment.Tokens))
	for _, t := range c.Deployment.Tokens {
		out[t.Symbol] = chain.Token{
			Address:  common.HexToAddress(t.Address),
			Native:   t.Native,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
		}
	}
	return out
}

func loadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int64
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrDur(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
