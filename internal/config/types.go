package config

import "time"

// Config holds all w3sale configuration.
type Config struct {
	Network        string              `json:"network"         mapstructure:"network"`
	NetworkMode    string              `json:"network_mode"    mapstructure:"network_mode"` // "mainnet" | "testnet"
	DefaultWallet  string              `json:"default_wallet"  mapstructure:"default_wallet"`
	WalletBridge   string              `json:"wallet_bridge"   mapstructure:"wallet_bridge"`   // EIP-1193 bridge URL; empty uses the local wallet
	PaymentToken   string              `json:"payment_token"   mapstructure:"payment_token"`   // expected payment token address, optional
	ConfirmTimeout int                 `json:"confirm_timeout" mapstructure:"confirm_timeout"` // seconds
	LogLevel       string              `json:"log_level"       mapstructure:"log_level"`
	CustomRPCs     map[string][]string `json:"custom_rpcs"     mapstructure:"custom_rpcs"`

	// internal: config dir path used for Save()
	configDir string
}

// ConfirmWait is ConfirmTimeout as a duration, falling back to the default.
func (c *Config) ConfirmWait() time.Duration {
	if c.ConfirmTimeout <= 0 {
		return TxConfirmTimeout
	}
	return time.Duration(c.ConfirmTimeout) * time.Second
}
