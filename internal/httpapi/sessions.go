package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dataflowhq/advisor/internal/market"
	"github.com/dataflowhq/advisor/internal/transcript"
)

type createSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	sess, err := s.transcripts.CreateSession(r.Context(), principal.UID, req.Title)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "session_error", "could not create session")
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}

	sessions, err := s.transcripts.ListSessions(r.Context(), principal.UID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "session_error", "could not list sessions")
		return
	}
	if sessions == nil {
		sessions = []transcript.Session{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "id")
	sess, err := s.transcripts.GetSession(r.Context(), sessionID)
	if err != nil || sess.UserID != principal.UID {
		respondError(w, http.StatusNotFound, "session_not_found", "unknown session")
		return
	}

	messages, err := s.transcripts.ListMessages(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "session_error", "could not list messages")
		return
	}
	if messages == nil {
		messages = []transcript.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleListStocks(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	stocks := s.stocks.Snapshot(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"total":   len(stocks),
		"page":    page,
		"limit":   limit,
		"results": market.Page(stocks, page, limit),
	})
}
