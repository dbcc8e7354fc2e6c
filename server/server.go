// Package server exposes a small HTTP API for triggering transfer passes
// and reading the transfer history.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/s0up4200/seedshift/history"
	"github.com/s0up4200/seedshift/transfer"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	shutdownTimeout     = 10 * time.Second
)

// Trigger starts a pass in the background.
type Trigger interface {
	Start(ctx context.Context) error
}

// HistoryReader lists Transfer Records, newest first.
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// Handler serves the API routes.
type Handler struct {
	trigger Trigger
	history HistoryReader
	apiKey  string
	logger  zerolog.Logger
	// base is the context passes started over HTTP run under, so they are
	// not cancelled when the request ends.
	base context.Context
}

// NewHandler creates a Handler. An empty apiKey disables authentication.
func NewHandler(base context.Context, trigger Trigger, hist HistoryReader, apiKey string, logger zerolog.Logger) *Handler {
	return &Handler{
		trigger: trigger,
		history: hist,
		apiKey:  apiKey,
		logger:  logger.With().Str("component", "server").Logger(),
		base:    base,
	}
}

// Routes returns the router for the API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.apiKeyMiddleware)
		r.Post("/sync", h.handleSync)
		r.Get("/history", h.handleHistory)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	err := h.trigger.Start(h.base)
	switch {
	case errors.Is(err, transfer.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		h.logger.Error().Err(err).Msg("Failed to start transfer")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		h.logger.Info().Str("request_id", middleware.GetReqID(r.Context())).Msg("Transfer started via API")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

type recordResponse struct {
	Hash      string    `json:"hash"`
	Name      string    `json:"name"`
	Scenario  string    `json:"scenario"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list history")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read history"})
		return
	}

	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, recordResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey != "" {
			key := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", addr).Msg("Starting API server")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to gracefully shutdown the server")
			if err := srv.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}
		return nil
	}
}
