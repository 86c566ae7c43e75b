// Package config handles configuration for the wallet backend,
// including defaults, JSON overlay, environment variables, and
// command-line flags.
package config

import "time"

// Config holds runtime settings for the trading-agent server.
//
// Fields:
//   - BotToken: Telegram bot API token.
//   - EndpointAddrHTTP: bind address for the swap intake endpoint.
//   - IntakeSecretKey: HMAC secret for intake bearer tokens (HS256).
//   - IntakeTokenValidityDuration: intake token lifetime.
//   - TOTPEncryptionKey: hex-encoded 32-byte key for TOTP secret
//     encryption at rest. Do not use test defaults in prod.
//   - TOTPIssuer: issuer name shown in authenticator apps.
//   - AccountsFile: path of the JSON account store.
//   - DatabaseDSN: PostgreSQL DSN (pgx); when set it is used instead of
//     the JSON file store.
//   - RPCEndpoint: Solana JSON-RPC endpoint.
//   - JupiterBaseURL: Jupiter quote API base URL.
//   - SwapInputMint / SwapAmountLamports / SwapSlippageBps: the fixed
//     input leg of every swap.
//   - SessionTTL: idle lifetime of registration and approval sessions.
//   - SweepInterval: how often expired sessions are collected.
type Config struct {
	BotToken                    string
	EndpointAddrHTTP            string
	IntakeSecretKey             string
	IntakeTokenValidityDuration time.Duration
	TOTPEncryptionKey           string
	TOTPIssuer                  string
	AccountsFile                string
	DatabaseDSN                 string
	RPCEndpoint                 string
	JupiterBaseURL              string
	SwapInputMint               string
	SwapAmountLamports          uint64
	SwapSlippageBps             int
	SessionTTL                  time.Duration
	SweepInterval               time.Duration
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":3000"
	c.IntakeSecretKey = "secretKey"
	c.IntakeTokenValidityDuration = 24 * time.Hour
	c.TOTPEncryptionKey = "0000000000000000000000000000000000000000000000000000000000000000"
	c.TOTPIssuer = "ZkAGI Trading Agent"
	c.AccountsFile = "users.json"
	c.RPCEndpoint = "https://api.mainnet-beta.solana.com"
	c.JupiterBaseURL = "https://quote-api.jup.ag/v6"
	c.SwapInputMint = "So11111111111111111111111111111111111111112"
	c.SwapAmountLamports = 1_000_000
	c.SwapSlippageBps = 50
	c.SessionTTL = 15 * time.Minute
	c.SweepInterval = 1 * time.Minute
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, environment variables, and finally
// command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
