package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/flagx"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which
// allows parsing both string values such as "15m" and integer
// nanoseconds. It is an intermediate DTO: after unmarshalling, non-zero
// fields are copied into the runtime Config.
type JsonConfig struct {
	BotToken                    string         `json:"bot_token"`
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	IntakeSecretKey             string         `json:"intake_secret_key"`
	IntakeTokenValidityDuration timex.Duration `json:"intake_token_validity_duration"`
	TOTPEncryptionKey           string         `json:"totp_encryption_key"`
	TOTPIssuer                  string         `json:"totp_issuer"`
	AccountsFile                string         `json:"accounts_file"`
	DatabaseDSN                 string         `json:"database_dsn"`
	RPCEndpoint                 string         `json:"rpc_endpoint"`
	JupiterBaseURL              string         `json:"jupiter_base_url"`
	SwapInputMint               string         `json:"swap_input_mint"`
	SwapAmountLamports          uint64         `json:"swap_amount_lamports"`
	SwapSlippageBps             int            `json:"swap_slippage_bps"`
	SessionTTL                  timex.Duration `json:"session_ttl"`
	SweepInterval               timex.Duration `json:"sweep_interval"`
}

// parseJson loads configuration values from a JSON file into the
// provided Config instance. The file path comes from the -c or -config
// command-line flags; when neither is set, no file is loaded. An
// unreadable or invalid file panics. Fields absent from the file keep
// their current values.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.BotToken, c.BotToken)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.IntakeSecretKey, c.IntakeSecretKey)
	setString(&config.TOTPEncryptionKey, c.TOTPEncryptionKey)
	setString(&config.TOTPIssuer, c.TOTPIssuer)
	setString(&config.AccountsFile, c.AccountsFile)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RPCEndpoint, c.RPCEndpoint)
	setString(&config.JupiterBaseURL, c.JupiterBaseURL)
	setString(&config.SwapInputMint, c.SwapInputMint)
	if c.SwapAmountLamports != 0 {
		config.SwapAmountLamports = c.SwapAmountLamports
	}
	if c.SwapSlippageBps != 0 {
		config.SwapSlippageBps = c.SwapSlippageBps
	}
	setDuration(&config.IntakeTokenValidityDuration, c.IntakeTokenValidityDuration)
	setDuration(&config.SessionTTL, c.SessionTTL)
	setDuration(&config.SweepInterval, c.SweepInterval)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = time.Duration(v.Duration)
	}
}
