// Package httpapi exposes the trading-signal intake endpoint. External
// signal producers authenticate with a bearer token and request a swap
// for a user; the user then approves or denies it over the chat
// transport.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/logging"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/server/auth"
	"github.com/ZkAGI/ZkAGI-Trading-Agent/internal/shared"
)

// Authorizer starts the in-chat approval flow for a swap request.
type Authorizer interface {
	Begin(ctx context.Context, identity, outputMint string) error
}

type Server struct {
	addr       string
	secretKey  []byte
	authorizer Authorizer
	log        logging.Logger
}

func NewServer(addr string, secretKey []byte, authorizer Authorizer, log logging.Logger) *Server {
	return &Server{
		addr:       addr,
		secretKey:  secretKey,
		authorizer: authorizer,
		log:        log.With("component", "httpapi"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /swap", s.handleSwap)
	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "intake listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type swapRequest struct {
	TelegramID string `json:"telegramId"`
	OutputMint string `json:"outputMint"`
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller, err := s.authenticate(r)
	if err != nil {
		s.log.Warn(ctx, "intake auth failed", "error", err.Error())
		writeError(w, http.StatusUnauthorized, "Invalid or missing bearer token.")
		return
	}

	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request body must be valid JSON.")
		return
	}
	if req.TelegramID == "" || req.OutputMint == "" {
		writeError(w, http.StatusBadRequest, "telegramId and outputMint are required.")
		return
	}

	s.log.Info(ctx, "swap request received",
		"caller", caller, "identity", req.TelegramID, "outputMint", req.OutputMint)

	if err := s.authorizer.Begin(ctx, req.TelegramID, req.OutputMint); err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "User not found.")
			return
		}
		s.log.Error(ctx, "authorization start failed", "identity", req.TelegramID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "Failed to start swap authorization.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Swap request sent to user on Telegram.",
	})
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", shared.ErrInvalidToken
	}
	return auth.ParseIntakeToken(token, s.secretKey)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
