package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays Config fields from environment variables. Variables
// that are unset or fail to parse leave the current value untouched, so
// a partial environment (e.g. a .env with only BOT_TOKEN) works.
func parseEnv(config *Config) {
	setString(&config.BotToken, os.Getenv("BOT_TOKEN"))
	setString(&config.EndpointAddrHTTP, os.Getenv("HTTP_ADDR"))
	setString(&config.IntakeSecretKey, os.Getenv("INTAKE_SECRET_KEY"))
	setString(&config.TOTPEncryptionKey, os.Getenv("TOTP_ENCRYPTION_KEY"))
	setString(&config.TOTPIssuer, os.Getenv("TOTP_ISSUER"))
	setString(&config.AccountsFile, os.Getenv("ACCOUNTS_FILE"))
	setString(&config.DatabaseDSN, os.Getenv("DATABASE_DSN"))
	setString(&config.RPCEndpoint, os.Getenv("RPC_ENDPOINT"))
	setString(&config.JupiterBaseURL, os.Getenv("JUPITER_BASE_URL"))
	setString(&config.SwapInputMint, os.Getenv("SWAP_INPUT_MINT"))

	if v, err := strconv.ParseUint(os.Getenv("SWAP_AMOUNT_LAMPORTS"), 10, 64); err == nil {
		config.SwapAmountLamports = v
	}
	if v, err := strconv.Atoi(os.Getenv("SWAP_SLIPPAGE_BPS")); err == nil {
		config.SwapSlippageBps = v
	}

	setEnvDuration(&config.IntakeTokenValidityDuration, "INTAKE_TOKEN_VALIDITY")
	setEnvDuration(&config.SessionTTL, "SESSION_TTL")
	setEnvDuration(&config.SweepInterval, "SWEEP_INTERVAL")
}

func setEnvDuration(dst *time.Duration, name string) {
	if v, err := time.ParseDuration(os.Getenv(name)); err == nil && v != 0 {
		*dst = v
	}
}
