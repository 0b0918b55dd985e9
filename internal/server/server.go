// Package server exposes the ingestion pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SolanaSergio/ApexBets-sub005/internal/auth"
	"github.com/SolanaSergio/ApexBets-sub005/internal/processor"
	"github.com/SolanaSergio/ApexBets-sub005/internal/validator"
	"github.com/SolanaSergio/ApexBets-sub005/pkg/models"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SignatureHeader carries the sender's HMAC signature of the request body.
const SignatureHeader = "X-Webhook-Signature"

// GameReader is the read-side store surface the HTTP layer needs.
type GameReader interface {
	GetGameByKey(ctx context.Context, gameID string) (*models.Game, error)
	Ping(ctx context.Context) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	processor *processor.Processor
	db        GameReader
	log       *logrus.Logger
}

// NewHandler creates a new handler with dependencies
func NewHandler(p *processor.Processor, db GameReader, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{processor: p, db: db, log: log}
}

// Router builds the chi router with middleware and all routes mounted.
func Router(h *Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", SignatureHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Post("/webhook/events", h.ReceiveEvent)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games/{gameID}", h.GetGame)
	})

	return r
}

// HealthCheck reports service and database health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unhealthy")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "ingest-service",
	})
}

// ReceiveEvent accepts one webhook delivery and runs it through the
// processing pipeline. The response status maps the pipeline result:
// 200 for processed or duplicate deliveries, 401 for failed
// authentication, 400 for invalid payloads, 500 for handler failures.
func (h *Handler) ReceiveEvent(w http.ResponseWriter, r *http.Request) {
	// Read one byte past the cap so oversized bodies are detected without
	// buffering them whole.
	raw, err := io.ReadAll(io.LimitReader(r.Body, validator.MaxPayloadBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	requestID := uuid.NewString()

	// The capped read truncates anything past the limit, so the signature
	// can no longer be checked over the sender's full body. Reject by size
	// here; an oversized delivery is invalid, not unauthenticated.
	if len(raw) > validator.MaxPayloadBytes {
		respondJSON(w, http.StatusBadRequest, processor.Outcome{
			Success:   false,
			Message:   "validation failed",
			RequestID: requestID,
			Errors:    []string{fmt.Sprintf("payload: exceeds limit of %d bytes", validator.MaxPayloadBytes)},
		})
		return
	}

	clientAddr := auth.ClientAddress(r.Header)
	if clientAddr == auth.UnknownAddress && r.RemoteAddr != "" {
		clientAddr = r.RemoteAddr
	}

	meta := processor.RequestMeta{
		RequestID:     requestID,
		ClientAddress: clientAddr,
		Signature:     r.Header.Get(SignatureHeader),
		ReceivedAt:    time.Now().UTC(),
	}

	outcome, err := h.processor.Process(r.Context(), raw, meta)
	respondJSON(w, statusFor(err), outcome)
}

// GetGame retrieves a single stored game by its external key
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		respondError(w, http.StatusBadRequest, "game_id is required")
		return
	}

	game, err := h.db.GetGameByKey(ctx, gameID)
	if err != nil {
		h.log.WithError(err).Error("failed to retrieve game")
		respondError(w, http.StatusInternalServerError, "failed to retrieve game")
		return
	}

	if game == nil {
		respondError(w, http.StatusNotFound, "game not found")
		return
	}

	respondJSON(w, http.StatusOK, game)
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, processor.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, processor.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Printf("error encoding response: %v\n", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
		"code":    status,
	})
}
