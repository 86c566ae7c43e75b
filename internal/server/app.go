// Package server initializes and runs the wallet backend: the account
// store, the Telegram transport, the swap intake endpoint, and the
// registration and authorization state machines, with graceful shutdown
// on OS signals.
package server

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gagliardetto/solana-go/rpc"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/cryptox"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/logging"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/accounts"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/authorization"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/config"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/httpapi"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/migrations"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/registration"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/swap"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/transport"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/transport/telegram"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/twofactor"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/wallet"
)

type App struct {
	config *config.Config
	logger logging.Logger

	repo      accounts.Repository
	bot       *telegram.Bot
	rpcClient *rpc.Client

	registration  *registration.Machine
	authorization *authorization.Machine
	intake        *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	serverKey, err := hex.DecodeString(cfg.TOTPEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("totp encryption key is not valid hex")
	}
	serverCipher, err := cryptox.NewServerCipher(serverKey)
	if err != nil {
		return nil, fmt.Errorf("totp encryption key: %w", err)
	}

	twoFactor := twofactor.NewManager(cfg.TOTPIssuer)

	repo, err := newAccountRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("account store init: %w", err)
	}

	bot, err := telegram.New(cfg.BotToken, logger)
	if err != nil {
		return nil, err
	}

	rpcClient := rpc.New(cfg.RPCEndpoint)

	executor := swap.NewRetryExecutor(
		swap.NewJupiterExecutor(swap.Config{
			BaseURL:        cfg.JupiterBaseURL,
			InputMint:      cfg.SwapInputMint,
			AmountLamports: cfg.SwapAmountLamports,
			SlippageBps:    cfg.SwapSlippageBps,
		}, rpcClient, logger),
		logger,
	)

	reg := registration.NewMachine(repo, twoFactor, serverCipher, bot, logger, cfg.SessionTTL)
	authz := authorization.NewMachine(repo, twoFactor, serverCipher, executor, bot, logger, cfg.SessionTTL)
	intake := httpapi.NewServer(cfg.EndpointAddrHTTP, []byte(cfg.IntakeSecretKey), authz, logger)

	return &App{
		config:        cfg,
		logger:        logger,
		repo:          repo,
		bot:           bot,
		rpcClient:     rpcClient,
		registration:  reg,
		authorization: authz,
		intake:        intake,
	}, nil
}

// newAccountRepository picks the Postgres store when a DSN is
// configured, applying embedded migrations, and falls back to the JSON
// file store otherwise.
func newAccountRepository(cfg *config.Config) (accounts.Repository, error) {
	if cfg.DatabaseDSN == "" {
		return accounts.NewJSONRepository(cfg.AccountsFile)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(context.Background(), db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return accounts.NewPostgresRepository(db)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startBot(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.bot.Poll(ctx, app.handleUpdate); err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startIntake(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.intake.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// handleUpdate routes one inbound chat message: commands first, then
// free text into whichever state machine has a session for the sender.
func (app *App) handleUpdate(ctx context.Context, u transport.Update) {
	switch u.Command {
	case "start":
		app.handleStart(ctx, u)
	case "balance":
		app.handleBalance(ctx, u)
	case "":
		if app.registration.HandleText(ctx, u.Identity, u.Text) {
			return
		}
		if app.authorization.HandleText(ctx, u.Identity, u.Text) {
			return
		}
		app.logger.Debug(ctx, "unroutable message ignored", "identity", u.Identity)
	default:
		app.send(ctx, u.Identity, "Unknown command. Use /start or /balance.")
	}
}

func (app *App) handleStart(ctx context.Context, u transport.Update) {
	account, err := app.repo.Get(ctx, u.Identity)
	if err == nil {
		app.send(ctx, u.Identity,
			"Welcome back!\nYour Solana address: "+account.Wallet.PublicKey+
				"\nUse /balance to check your SOL balance.")
		return
	}
	if !errors.Is(err, shared.ErrorNotFound) {
		app.logger.Error(ctx, "account lookup failed", "identity", u.Identity, "error", err.Error())
		return
	}

	if err := app.registration.Begin(ctx, u.Identity, u.DisplayName); err != nil {
		app.logger.Error(ctx, "registration start failed", "identity", u.Identity, "error", err.Error())
	}
}

func (app *App) handleBalance(ctx context.Context, u transport.Update) {
	account, err := app.repo.Get(ctx, u.Identity)
	if err != nil {
		app.send(ctx, u.Identity, "No account found. Send /start to register.")
		return
	}

	balance, err := wallet.Balance(ctx, app.rpcClient, account.Wallet.PublicKey)
	if err != nil {
		app.logger.Error(ctx, "balance query failed", "identity", u.Identity, "error", err.Error())
		app.send(ctx, u.Identity, "Could not fetch your balance right now. Try again later.")
		return
	}

	app.send(ctx, u.Identity, fmt.Sprintf("Balance: %.9f SOL\nAddress: %s", balance, account.Wallet.PublicKey))
}

func (app *App) send(ctx context.Context, identity, text string) {
	if err := app.bot.SendText(ctx, identity, text); err != nil {
		app.logger.Warn(ctx, "reply delivery failed", "identity", identity, "error", err.Error())
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.registration.StartSweeper(ctx, app.config.SweepInterval)
	app.authorization.StartSweeper(ctx, app.config.SweepInterval)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startBot(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startIntake(ctx, cancelFunc)
	}()

	wg.Wait()
}
