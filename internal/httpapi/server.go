package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dataflowhq/advisor/internal/auth"
	"github.com/dataflowhq/advisor/internal/config"
	"github.com/dataflowhq/advisor/internal/market"
	"github.com/dataflowhq/advisor/internal/memory"
	"github.com/dataflowhq/advisor/internal/observability"
	"github.com/dataflowhq/advisor/internal/transcript"
)

type Server struct {
	cfg          config.Config
	verifier     auth.Verifier
	windows      *memory.Windows
	longTerm     *memory.LongTerm
	orchestrator StreamOrchestrator
	persister    TurnPersister
	transcripts  transcript.Store
	stocks       *market.Cache
	metrics      *observability.Metrics
}

func New(
	cfg config.Config,
	verifier auth.Verifier,
	windows *memory.Windows,
	longTerm *memory.LongTerm,
	orchestrator StreamOrchestrator,
	persister TurnPersister,
	transcripts transcript.Store,
	stocks *market.Cache,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:          cfg,
		verifier:     verifier,
		windows:      windows,
		longTerm:     longTerm,
		orchestrator: orchestrator,
		persister:    persister,
		transcripts:  transcripts,
		stocks:       stocks,
		metrics:      metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/advisor/ask", s.handleAsk)
	r.Post("/api/sessions", s.handleCreateSession)
	r.Get("/api/sessions", s.handleListSessions)
	r.Get("/api/sessions/{id}/messages", s.handleListMessages)
	r.Get("/api/stocks/all", s.handleListStocks)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"long_term_enabled": s.longTerm != nil,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, err := s.verifier.Verify(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid credentials")
		return auth.Principal{}, false
	}
	return p, true
}

var errEmptyBody = errors.New("empty request body")

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	return err
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[httpapi] encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
