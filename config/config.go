package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ChainConfig describes one chain in the transfer topology
type ChainConfig struct {
	Name   string `mapstructure:"name"`
	ParaID uint32 `mapstructure:"para_id"` // 0 for the relay chain
	RPCURL string `mapstructure:"rpc_url"`
}

// AssetConfig describes the token being moved between chains
type AssetConfig struct {
	Symbol      string `mapstructure:"symbol"`
	Decimals    uint8  `mapstructure:"decimals"`
	NativeChain string `mapstructure:"native_chain"`
	// ForeignIDs maps a chain name to the foreign-asset identifier used to
	// query the asset's balance on chains where it is reserve-backed rather
	// than native. Chains without an entry use the native balance surface.
	ForeignIDs map[string]string `mapstructure:"foreign_ids"`
}

// PolicyConfig holds transfer policy values. These are operator policy, not
// protocol constants, and can be tuned per deployment.
type PolicyConfig struct {
	MinTransfer  string        `mapstructure:"min_transfer"`  // in asset units, e.g. "0.1"
	MaxTransfer  string        `mapstructure:"max_transfer"`  // in asset units
	FeeEstimate  string        `mapstructure:"fee_estimate"`  // in asset units
	PollInterval time.Duration `mapstructure:"poll_interval"` // balance poll cadence
	RefreshDelay time.Duration `mapstructure:"refresh_delay"` // wait before post-transfer refetch
	ResetGrace   time.Duration `mapstructure:"reset_grace"`   // how long a terminal status stays visible
	AttemptTTL   time.Duration `mapstructure:"attempt_ttl"`   // attempt retention after a terminal state
}

// IndexerConfig holds settings for the external transfer-history indexer
type IndexerConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SignerConfig holds the local signing key settings
type SignerConfig struct {
	Seed       string `mapstructure:"seed"` // hex-encoded ed25519 seed
	SS58Prefix uint16 `mapstructure:"ss58_prefix"`
}

// Config holds the application configuration
type Config struct {
	Chains       []ChainConfig `mapstructure:"chains"`
	Asset        AssetConfig   `mapstructure:"asset"`
	Policy       PolicyConfig  `mapstructure:"policy"`
	Indexer      IndexerConfig `mapstructure:"indexer"`
	Signer       SignerConfig  `mapstructure:"signer"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	ExplorerURL  string        `mapstructure:"explorer_url"`
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".xcm-transfer")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from environment variables
	viper.SetEnvPrefix("XCM_TRANSFER")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// The seed is sensitive and only ever read from the environment
	if seed := os.Getenv("XCM_TRANSFER_SIGNER_SEED"); seed != "" {
		cfg.Signer.Seed = seed
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("chains", []map[string]interface{}{
		{"name": "Polkadot", "para_id": 0, "rpc_url": "wss://rpc.polkadot.io"},
		{"name": "AssetHub", "para_id": 1000, "rpc_url": "wss://polkadot-asset-hub-rpc.polkadot.io"},
		{"name": "Unique", "para_id": 2037, "rpc_url": "wss://ws.unique.network"},
	})
	viper.SetDefault("asset", map[string]interface{}{
		"symbol":       "DOT",
		"decimals":     10,
		"native_chain": "Polkadot",
		"foreign_ids":  map[string]string{"Unique": "relay-native"},
	})
	viper.SetDefault("policy.min_transfer", "0.1")
	viper.SetDefault("policy.max_transfer", "1000")
	viper.SetDefault("policy.fee_estimate", "0.01")
	viper.SetDefault("policy.poll_interval", 30*time.Second)
	viper.SetDefault("policy.refresh_delay", 5*time.Second)
	viper.SetDefault("policy.reset_grace", 8*time.Second)
	viper.SetDefault("policy.attempt_ttl", 10*time.Minute)
	viper.SetDefault("indexer.base_url", "https://polkadot.api.subscan.io")
	viper.SetDefault("indexer.page_size", 25)
	viper.SetDefault("indexer.timeout", 10*time.Second)
	viper.SetDefault("signer.ss58_prefix", 0)
	viper.SetDefault("query_timeout", 10*time.Second)
	viper.SetDefault("explorer_url", "https://polkadot.subscan.io")
}

func (c *Config) validate() error {
	if len(c.Chains) < 2 {
		return fmt.Errorf("at least two chains must be configured, got %d", len(c.Chains))
	}
	relays := 0
	seen := make(map[string]bool)
	for _, ch := range c.Chains {
		if ch.Name == "" {
			return fmt.Errorf("chain with para_id %d has no name", ch.ParaID)
		}
		if seen[ch.Name] {
			return fmt.Errorf("duplicate chain name: %s", ch.Name)
		}
		seen[ch.Name] = true
		if ch.RPCURL == "" {
			return fmt.Errorf("RPC URL not configured for chain %s", ch.Name)
		}
		if ch.ParaID == 0 {
			relays++
		}
	}
	if relays != 1 {
		return fmt.Errorf("topology requires exactly one relay chain (para_id 0), got %d", relays)
	}
	if c.Asset.Symbol == "" {
		return fmt.Errorf("asset symbol is required")
	}
	if !seen[c.Asset.NativeChain] {
		return fmt.Errorf("asset native chain %q is not a configured chain", c.Asset.NativeChain)
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
