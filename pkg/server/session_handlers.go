package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/voxstudy/voxstudy/pkg/ai"
	"github.com/voxstudy/voxstudy/pkg/store"
)

// summaryDepth is how many exchanges feed the session summary.
const summaryDepth = 10

type sessionPayload struct {
	ID                string `json:"id"`
	Name              string `json:"session_name"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
	TotalInteractions int    `json:"total_interactions"`
}

func toSessionPayload(s *store.Session) sessionPayload {
	return sessionPayload{
		ID:                strconv.FormatInt(s.ID, 10),
		Name:              s.Name,
		CreatedAt:         s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         s.UpdatedAt.Format(time.RFC3339),
		TotalInteractions: s.TotalInteractions,
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionName string `json:"session_name"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionName == "" {
		req.SessionName = "New Study Session"
	}

	sess, err := s.db.CreateSession(r.Context(), req.SessionName)
	if err != nil {
		s.logger.Error("session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           strconv.FormatInt(sess.ID, 10),
		"session_name": sess.Name,
		"created_at":   sess.CreatedAt.Format(time.RFC3339),
		"success":      true,
	})
}

func (s *Server) handleRecentSessions(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	sessions, err := s.db.RecentSessions(r.Context(), limit)
	if err != nil {
		s.logger.Error("session listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not list sessions")
		return
	}

	out := make([]sessionPayload, len(sessions))
	for i := range sessions {
		out[i] = toSessionPayload(&sessions[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": out,
		"success":  true,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	if err := s.db.DeleteSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		s.logger.Error("session delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not delete session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Study session deleted successfully.",
		"success": true,
	})
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	sessionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	ctx := r.Context()
	sess, err := s.db.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		s.logger.Error("session lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error getting session summary")
		return
	}

	convs, err := s.db.RecentConversations(ctx, sessionID, summaryDepth)
	if err != nil {
		s.logger.Error("conversation lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error getting session summary")
		return
	}

	summary := s.summarize(r, convs)

	writeJSON(w, http.StatusOK, map[string]any{
		"session_name":       sess.Name,
		"total_interactions": sess.TotalInteractions,
		"summary":            summary,
		"conversation_count": len(convs),
		"created_at":         sess.CreatedAt.Format(time.RFC3339),
		"success":            true,
	})
}

func (s *Server) summarize(r *http.Request, convs []store.Conversation) string {
	if len(convs) == 0 {
		return "No conversations in this session yet."
	}

	turns := make([]ai.Turn, len(convs))
	for i, c := range convs {
		turns[i] = ai.Turn{UserInput: c.UserInput, AIResponse: c.AIResponse}
	}

	var summary string
	err := s.breaker.Call("ai_service", func() error {
		if s.chain == nil || !s.chain.Available() {
			return ai.ErrNoProvider
		}
		var callErr error
		summary, _, callErr = s.chain.Generate(r.Context(), ai.Request{
			System:    ai.SummarySystem,
			Prompt:    ai.SummaryPrompt(turns),
			MaxTokens: 200,
		})
		return callErr
	})
	if err != nil {
		s.logger.Warn("session summary generation failed", "error", err)
		return "Study session summary unavailable at this time."
	}
	return summary
}
