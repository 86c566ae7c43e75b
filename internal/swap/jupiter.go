package swap

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/logging"
)

// Config holds the fixed swap parameters: the aggregator endpoint and
// the input leg of every swap.
type Config struct {
	// BaseURL of the Jupiter quote API, e.g. https://quote-api.jup.ag/v6.
	BaseURL string

	// InputMint is the asset sold in every swap (wrapped SOL).
	InputMint string

	// AmountLamports is the fixed input amount.
	AmountLamports uint64

	// SlippageBps is the allowed slippage in basis points.
	SlippageBps int
}

const (
	sendMaxRetries      = uint(2)
	confirmPollInterval = 2 * time.Second
)

// JupiterExecutor performs a swap end to end: quote, transaction fetch,
// fresh blockhash, signing, submission and confirmation. Each Execute
// call rebuilds everything, so a retry after an expired validity window
// gets a fresh, non-overlapping transaction.
type JupiterExecutor struct {
	cfg  Config
	http *http.Client
	rpc  *rpc.Client
	log  logging.Logger
}

func NewJupiterExecutor(cfg Config, rpcClient *rpc.Client, log logging.Logger) *JupiterExecutor {
	return &JupiterExecutor{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		rpc:  rpcClient,
		log:  log.With("component", "jupiter"),
	}
}

func (e *JupiterExecutor) Execute(ctx context.Context, signingKey []byte, req Request) (string, error) {
	signer := solana.PrivateKey(signingKey)

	swapTxBase64, err := e.fetchSwapTransaction(ctx, signer.PublicKey(), req.OutputMint)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(swapTxBase64)
	if err != nil {
		return "", fmt.Errorf("decode swap transaction: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("parse swap transaction: %w", err)
	}

	latest, err := e.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return "", fmt.Errorf("fetch blockhash: %w", err)
	}
	tx.Message.RecentBlockhash = latest.Value.Blockhash

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	return e.submitAndConfirm(ctx, tx, req, latest.Value.LastValidBlockHeight)
}

// fetchSwapTransaction asks Jupiter for a quote and then for a ready
// swap transaction for that quote.
func (e *JupiterExecutor) fetchSwapTransaction(ctx context.Context, user solana.PublicKey, outputMint string) (string, error) {
	quoteURL := fmt.Sprintf("%s/quote?inputMint=%s&outputMint=%s&amount=%d&slippageBps=%d",
		e.cfg.BaseURL,
		url.QueryEscape(e.cfg.InputMint),
		url.QueryEscape(outputMint),
		e.cfg.AmountLamports,
		e.cfg.SlippageBps,
	)

	quoteBody, err := e.getJSON(ctx, quoteURL)
	if err != nil {
		return "", fmt.Errorf("fetch quote: %w", err)
	}

	var quote struct {
		RoutePlan []json.RawMessage `json:"routePlan"`
	}
	if err := json.Unmarshal(quoteBody, &quote); err != nil {
		return "", fmt.Errorf("parse quote: %w", err)
	}
	if len(quote.RoutePlan) == 0 {
		return "", fmt.Errorf("no swap routes found for output mint %s", outputMint)
	}

	swapReq, err := json.Marshal(map[string]any{
		"quoteResponse":    json.RawMessage(quoteBody),
		"userPublicKey":    user.String(),
		"wrapAndUnwrapSol": true,
	})
	if err != nil {
		return "", err
	}

	swapBody, err := e.postJSON(ctx, e.cfg.BaseURL+"/swap", swapReq)
	if err != nil {
		return "", fmt.Errorf("fetch swap transaction: %w", err)
	}

	var swapResp struct {
		SwapTransaction string `json:"swapTransaction"`
		Error           string `json:"error"`
	}
	if err := json.Unmarshal(swapBody, &swapResp); err != nil {
		return "", fmt.Errorf("parse swap response: %w", err)
	}
	if swapResp.Error != "" {
		return "", fmt.Errorf("swap transaction rejected: %s", swapResp.Error)
	}
	if swapResp.SwapTransaction == "" {
		return "", fmt.Errorf("empty swap transaction in response")
	}

	return swapResp.SwapTransaction, nil
}

// submitAndConfirm sends the signed transaction and polls until it is
// confirmed. If the chain passes lastValidBlockHeight first, the
// transaction can never confirm and ErrValidityWindowExpired is
// returned.
func (e *JupiterExecutor) submitAndConfirm(ctx context.Context, tx *solana.Transaction, req Request, lastValidBlockHeight uint64) (string, error) {
	maxRetries := sendMaxRetries
	sig, err := e.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight: true,
		MaxRetries:    &maxRetries,
	})
	if err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}

	e.log.Info(ctx, "transaction submitted", "request", req.ID, "signature", sig.String())

	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		statuses, err := e.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			e.log.Warn(ctx, "signature status query failed", "request", req.ID, "error", err.Error())
			continue
		}

		if len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return "", fmt.Errorf("transaction failed on chain: %v", status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				e.log.Info(ctx, "transaction confirmed", "request", req.ID, "signature", sig.String())
				return sig.String(), nil
			}
		}

		height, err := e.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			continue
		}
		if height > lastValidBlockHeight {
			return "", ErrValidityWindowExpired
		}
	}
}

func (e *JupiterExecutor) getJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return e.doJSON(req)
}

func (e *JupiterExecutor) postJSON(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return e.doJSON(req)
}

func (e *JupiterExecutor) doJSON(req *http.Request) ([]byte, error) {
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
