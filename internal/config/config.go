package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultNetwork = "ethereum"
	defaultMode    = "mainnet"

	configFile  = "config.json"
	walletsFile = "wallets.json"
	salesFile   = "sales.json"
	sessionFile = "session.json"

	// EnvPrefix prefixes every environment override, e.g. W3SALE_NETWORK.
	EnvPrefix = "W3SALE"
	// EnvConfigDir overrides the config directory.
	EnvConfigDir = EnvPrefix + "_CONFIG_DIR"
)

// Keys lists the settable configuration keys.
var Keys = []string{
	"network", "network_mode", "default_wallet", "wallet_bridge",
	"payment_token", "confirm_timeout", "log_level",
}

// Load reads config from dir (or creates defaults). dir defaults to ~/.w3sale.
// W3SALE_* environment variables override file values.
func Load(dir string) (*Config, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home dir: %w", err)
		}
		dir = filepath.Join(home, ".w3sale")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, configFile))
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.configDir = dir
	if cfg.CustomRPCs == nil {
		cfg.CustomRPCs = make(map[string][]string)
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.configDir, configFile), data, 0o600)
}

// Set assigns a string value to key, converting it to the field type.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "network":
		c.Network = value
	case "network_mode":
		if value != "mainnet" && value != "testnet" {
			return fmt.Errorf("network_mode must be mainnet or testnet, got %q", value)
		}
		c.NetworkMode = value
	case "default_wallet":
		c.DefaultWallet = value
	case "wallet_bridge":
		c.WalletBridge = value
	case "payment_token":
		c.PaymentToken = value
	case "confirm_timeout":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("confirm_timeout must be a positive number of seconds, got %q", value)
		}
		c.ConfirmTimeout = n
	case "log_level":
		c.LogLevel = value
	default:
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// AddRPC adds a custom RPC URL for a chain.
func (c *Config) AddRPC(chain, url string) error {
	if c.CustomRPCs == nil {
		c.CustomRPCs = make(map[string][]string)
	}
	if slices.Contains(c.CustomRPCs[chain], url) {
		return fmt.Errorf("RPC %s already exists for chain %s", url, chain)
	}
	c.CustomRPCs[chain] = append(c.CustomRPCs[chain], url)
	return nil
}

// RemoveRPC removes a custom RPC URL for a chain.
func (c *Config) RemoveRPC(chain, url string) error {
	rpcs := c.CustomRPCs[chain]
	idx := slices.Index(rpcs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s not found for chain %s", url, chain)
	}
	c.CustomRPCs[chain] = slices.Delete(rpcs, idx, idx+1)
	return nil
}

// GetRPCs returns custom RPCs for a chain.
func (c *Config) GetRPCs(chain string) []string {
	return c.CustomRPCs[chain]
}

// Dir returns the config directory. The receipts database lives here too.
func (c *Config) Dir() string {
	return c.configDir
}

// WalletsPath is the wallet registry file.
func (c *Config) WalletsPath() string { return filepath.Join(c.configDir, walletsFile) }

// SalesPath is the saved-sales registry file.
func (c *Config) SalesPath() string { return filepath.Join(c.configDir, salesFile) }

// SessionPath is the local wallet's permission and chain session file.
func (c *Config) SessionPath() string { return filepath.Join(c.configDir, sessionFile) }

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"network":         defaultNetwork,
		"network_mode":    defaultMode,
		"default_wallet":  "",
		"wallet_bridge":   "",
		"payment_token":   "",
		"confirm_timeout": int(TxConfirmTimeout.Seconds()),
		"log_level":       "",
		"custom_rpcs":     map[string][]string{},
	}
}
