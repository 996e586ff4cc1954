package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Solana    SolanaConfig    `yaml:"solana"`
	EVMChains []EVMChain      `yaml:"evmChains"`
	TokenAPI  TokenAPIConfig  `yaml:"tokenAPI"`
	PriceAPI  PriceAPIConfig  `yaml:"priceAPI"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Cache     CacheConfig     `yaml:"cache"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // e.g. "debug", "info", "warn", "error"
	File  string `yaml:"file"`
}

// SolanaConfig holds the Solana RPC configuration.
type SolanaConfig struct {
	RPCEndpoint string  `yaml:"rpcEndpoint"`
	RateLimit   float64 `yaml:"rateLimit"` // RPC requests per second
	RateBurst   int     `yaml:"rateBurst"`
}

// EVMChain describes one supported EVM network scanned by the balances API.
type EVMChain struct {
	ChainID        int64  `yaml:"chainID"`
	Key            string `yaml:"key"` // upstream identifier, e.g. "ethereum"
	Name           string `yaml:"name"`
	NativeSymbol   string `yaml:"nativeSymbol"`
	NativeDecimals uint8  `yaml:"nativeDecimals"`
}

// TokenAPIConfig configures the token-lookup API and the rate limiter that
// protects it.
type TokenAPIConfig struct {
	BaseURL                  string `yaml:"baseURL"`
	RequestTimeoutMillis     int64  `yaml:"requestTimeoutMillis"`
	MaxTokensPerBatchRequest int    `yaml:"maxTokensPerBatchRequest"`
	MaxRequestsPerWindow     int    `yaml:"maxRequestsPerWindow"`
	WindowMillis             int64  `yaml:"windowMillis"`
	MaxRetries               int    `yaml:"maxRetries"`
	RetryAfterMillis         int64  `yaml:"retryAfterMillis"`
}

// PriceAPIConfig configures the DEX Screener price client.
type PriceAPIConfig struct {
	BaseURL                  string `yaml:"baseURL"`
	RequestTimeoutMillis     int64  `yaml:"requestTimeoutMillis"`
	MaxTokensPerBatchRequest int    `yaml:"maxTokensPerBatchRequest"`
	CacheTTLMinutes          int    `yaml:"cacheTTLMinutes"`
}

// ExchangeConfig configures the exchange account-state API.
type ExchangeConfig struct {
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	StableQuoteSymbol    string `yaml:"stableQuoteSymbol"`
}

// CacheConfig configures the metadata and denylist cache instances.
type CacheConfig struct {
	// PostgresDSN selects the durable backing store; empty means in-memory.
	PostgresDSN          string `yaml:"postgresDSN"`
	MetadataTTLHours     int    `yaml:"metadataTTLHours"` // 0 = never expires
	DenylistTTLHours     int    `yaml:"denylistTTLHours"`
	SweepIntervalMinutes int    `yaml:"sweepIntervalMinutes"`
}

// PortfolioConfig configures the orchestrator.
type PortfolioConfig struct {
	DustThresholdUSD float64 `yaml:"dustThresholdUSD"`
}

// LoadConfig loads configuration from a YAML file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	cfg.applyDefaults()

	if len(cfg.EVMChains) == 0 {
		return nil, fmt.Errorf("config %s: at least one EVM chain must be configured", path)
	}
	for _, chain := range cfg.EVMChains {
		if chain.Key == "" {
			return nil, fmt.Errorf("config %s: EVM chain %d is missing its upstream key", path, chain.ChainID)
		}
		if chain.NativeSymbol == "" {
			return nil, fmt.Errorf("config %s: EVM chain %d is missing its native symbol", path, chain.ChainID)
		}
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Solana.RPCEndpoint == "" {
		cfg.Solana.RPCEndpoint = "https://api.mainnet-beta.solana.com"
	}
	if cfg.Solana.RateLimit == 0 {
		cfg.Solana.RateLimit = 10
	}
	if cfg.Solana.RateBurst == 0 {
		cfg.Solana.RateBurst = 5
	}

	if cfg.TokenAPI.BaseURL == "" {
		cfg.TokenAPI.BaseURL = "https://li.quest/v1"
	}
	if cfg.TokenAPI.RequestTimeoutMillis == 0 {
		cfg.TokenAPI.RequestTimeoutMillis = 10000
	}
	if cfg.TokenAPI.MaxTokensPerBatchRequest == 0 {
		cfg.TokenAPI.MaxTokensPerBatchRequest = 30
		logrus.Infof("MaxTokensPerBatchRequest for TokenAPI not set, defaulting to %d", cfg.TokenAPI.MaxTokensPerBatchRequest)
	}
	if cfg.TokenAPI.MaxRequestsPerWindow == 0 {
		cfg.TokenAPI.MaxRequestsPerWindow = 20
	}
	if cfg.TokenAPI.WindowMillis == 0 {
		cfg.TokenAPI.WindowMillis = 1000
	}
	if cfg.TokenAPI.MaxRetries == 0 {
		cfg.TokenAPI.MaxRetries = 3
	}
	if cfg.TokenAPI.RetryAfterMillis == 0 {
		cfg.TokenAPI.RetryAfterMillis = 1000
	}

	if cfg.PriceAPI.BaseURL == "" {
		cfg.PriceAPI.BaseURL = "https://api.dexscreener.com"
		logrus.Infof("PriceAPI.BaseURL not set, defaulting to %s", cfg.PriceAPI.BaseURL)
	}
	if cfg.PriceAPI.RequestTimeoutMillis == 0 {
		cfg.PriceAPI.RequestTimeoutMillis = 10000
	}
	if cfg.PriceAPI.MaxTokensPerBatchRequest == 0 {
		cfg.PriceAPI.MaxTokensPerBatchRequest = 30
	}
	if cfg.PriceAPI.CacheTTLMinutes == 0 {
		cfg.PriceAPI.CacheTTLMinutes = 5
	}

	if cfg.Exchange.BaseURL == "" {
		cfg.Exchange.BaseURL = "https://api.hyperliquid.xyz"
	}
	if cfg.Exchange.RequestTimeoutMillis == 0 {
		cfg.Exchange.RequestTimeoutMillis = 10000
	}
	if cfg.Exchange.StableQuoteSymbol == "" {
		cfg.Exchange.StableQuoteSymbol = "USDC"
	}

	for i := range cfg.EVMChains {
		if cfg.EVMChains[i].NativeDecimals == 0 {
			cfg.EVMChains[i].NativeDecimals = 18
		}
	}

	if cfg.Cache.DenylistTTLHours == 0 {
		cfg.Cache.DenylistTTLHours = 24
	}
	if cfg.Cache.SweepIntervalMinutes == 0 {
		cfg.Cache.SweepIntervalMinutes = 10
	}

	if cfg.Portfolio.DustThresholdUSD == 0 {
		cfg.Portfolio.DustThresholdUSD = 0.02
	}
}
