package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_parseEnv(t *testing.T) {
	t.Run("overlays set variables", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "env:token")
		t.Setenv("SESSION_TTL", "5m")
		t.Setenv("SWAP_AMOUNT_LAMPORTS", "42")

		cfg := &Config{}
		cfg.LoadDefaults()
		parseEnv(cfg)

		assert.Equal(t, "env:token", cfg.BotToken)
		assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
		assert.Equal(t, uint64(42), cfg.SwapAmountLamports)
		// untouched by the environment
		assert.Equal(t, ":3000", cfg.EndpointAddrHTTP)
	})

	t.Run("unparsable values are ignored", func(t *testing.T) {
		t.Setenv("SESSION_TTL", "not-a-duration")
		t.Setenv("SWAP_SLIPPAGE_BPS", "many")

		cfg := &Config{}
		cfg.LoadDefaults()
		parseEnv(cfg)

		assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
		assert.Equal(t, 50, cfg.SwapSlippageBps)
	})
}
