package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/dataflowhq/advisor/internal/advisor"
	"github.com/dataflowhq/advisor/internal/prompt"
	"github.com/dataflowhq/advisor/internal/transcript"
)

// StreamOrchestrator drives one model generation and relays deltas.
type StreamOrchestrator interface {
	Stream(ctx context.Context, userID, sessionID string, pc prompt.Context, relay advisor.DeltaHandler) (string, error)
}

// TurnPersister commits a finished turn across the memory backends.
type TurnPersister interface {
	Commit(ctx context.Context, userID, sessionID, question string, result advisor.Result) []advisor.Outcome
}

type askRequest struct {
	Question  string            `json:"question"`
	Profile   map[string]string `json:"profile"`
	SessionID string            `json:"session_id"`
}

// terminalFrame closes a successful stream. Analysis deliberately has no
// omitempty so absent analysis serializes as null.
type terminalFrame struct {
	Done        bool              `json:"done"`
	Content     string            `json:"content"`
	Suggestions []string          `json:"suggestions"`
	Analysis    *advisor.Analysis `json:"analysis"`
}

type errorFrame struct {
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// handleAsk is the streaming advisory endpoint. Validation failures are
// ordinary HTTP statuses; once the first frame is written every further
// failure travels inside the frame protocol.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer cannot stream")
		return
	}

	ctx := r.Context()
	sess, err := s.resolveSession(ctx, principal.UID, req.SessionID, req.Question)
	if err != nil {
		if errors.Is(err, transcript.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session_not_found", "unknown session")
			return
		}
		respondError(w, http.StatusInternalServerError, "session_error", "could not resolve session")
		return
	}

	// Assemble bounded context from both memory tiers plus the snapshot.
	window := s.windows.GetOrCreate(principal.UID)
	if s.metrics != nil {
		s.metrics.ActiveWindows.Set(float64(s.windows.ActiveCount()))
	}

	var excerpts []string
	if s.longTerm != nil {
		excerpts = s.longTerm.Retrieve(ctx, principal.UID, req.Question, s.cfg.RetrieveTopK)
	}

	pc := prompt.Build(req.Question, req.Profile, s.stocks.Snapshot(ctx), window.Turns, excerpts)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	full, err := s.orchestrator.Stream(ctx, principal.UID, sess.ID, pc, func(delta string) error {
		return writeFrame(w, flusher, delta)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing left to write.
			if s.metrics != nil {
				s.metrics.StreamFailures.WithLabelValues("cancelled").Inc()
			}
			log.Printf("[ask] client disconnected mid-stream user=%s session=%s", principal.UID, sess.ID)
			return
		}
		if s.metrics != nil {
			s.metrics.StreamFailures.WithLabelValues("model").Inc()
		}
		log.Printf("[ask] generation failed user=%s session=%s: %v", principal.UID, sess.ID, err)
		writeJSONFrame(w, flusher, errorFrame{Done: true, Error: "generation failed"})
		return
	}

	result := advisor.Extract(full)
	writeJSONFrame(w, flusher, terminalFrame{
		Done:        true,
		Content:     result.Content,
		Suggestions: result.Suggestions,
		Analysis:    result.Analysis,
	})

	// Best-effort fan-out after the terminal frame; each backend is bounded
	// by its own timeout inside Commit.
	s.persister.Commit(ctx, principal.UID, sess.ID, req.Question, result)
}

// resolveSession loads the caller's session or creates one titled after the
// question when none was supplied.
func (s *Server) resolveSession(ctx context.Context, userID, sessionID, question string) (transcript.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return s.transcripts.CreateSession(ctx, userID, sessionTitle(question))
	}

	sess, err := s.transcripts.GetSession(ctx, sessionID)
	if err != nil {
		return transcript.Session{}, err
	}
	if sess.UserID != userID {
		// Do not leak other users' session ids.
		return transcript.Session{}, transcript.ErrSessionNotFound
	}
	return sess, nil
}

func sessionTitle(question string) string {
	title := strings.TrimSpace(question)
	if len(title) > 60 {
		title = title[:60]
	}
	if title == "" {
		title = "New Chat"
	}
	return title
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, data string) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeJSONFrame(w http.ResponseWriter, flusher http.Flusher, frame any) {
	raw, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[ask] marshal frame: %v", err)
		return
	}
	if err := writeFrame(w, flusher, string(raw)); err != nil {
		log.Printf("[ask] write frame: %v", err)
	}
}
