package config

import (
	"flag"
	"os"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP intake bind address (e.g., ":3000")
//	-d string   PostgreSQL DSN
//	-f string   JSON account store path
//	-t string   Telegram bot token
//	-s string   intake bearer token HMAC secret
//	-r string   Solana JSON-RPC endpoint
//
// The function first filters os.Args to only the flags it recognizes
// using flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-f", "-t", "-s", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port for the swap intake endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccountsFile, "f", config.AccountsFile, "JSON account store path")
	fs.StringVar(&config.BotToken, "t", config.BotToken, "Telegram bot token")
	fs.StringVar(&config.IntakeSecretKey, "s", config.IntakeSecretKey, "intake secret key")
	fs.StringVar(&config.RPCEndpoint, "r", config.RPCEndpoint, "Solana RPC endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
