package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/voxstudy/voxstudy/pkg/ai"
	"github.com/voxstudy/voxstudy/pkg/store"
)

// historyDepth is how many recent exchanges are replayed as model context.
const historyDepth = 5

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message       string  `json:"message"`
		SessionID     string  `json:"session_id"`
		InputMethod   string  `json:"input_method"`
		AudioDuration float64 `json:"audio_duration"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "No message provided")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "Session ID required")
		return
	}
	sessionID, err := strconv.ParseInt(req.SessionID, 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Invalid session ID")
		return
	}
	if req.InputMethod == "" {
		req.InputMethod = "text"
	}

	ctx := r.Context()
	if _, err := s.db.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Invalid session ID")
			return
		}
		s.logger.Error("session lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error during chat")
		return
	}

	recent, err := s.db.RecentConversations(ctx, sessionID, historyDepth)
	if err != nil {
		s.logger.Error("conversation history lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error during chat")
		return
	}
	history := make([]ai.Turn, len(recent))
	for i, c := range recent {
		history[i] = ai.Turn{UserInput: c.UserInput, AIResponse: c.AIResponse}
	}

	ragContext := s.knowledge.ContextForQuery(ctx, req.Message)

	var text, source string
	genErr := s.breaker.Call("ai_service", func() error {
		if s.chain == nil || !s.chain.Available() {
			return ai.ErrNoProvider
		}
		var callErr error
		text, source, callErr = s.chain.Generate(ctx, ai.Request{
			System:  ai.StudySystem,
			Prompt:  ai.StudyPrompt(req.Message, ragContext),
			History: history,
		})
		return callErr
	})
	if genErr != nil {
		s.logger.Warn("chat generation failed", "error", genErr)
		s.metrics.AIResponse("fallback")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":             "AI service unavailable",
			"fallback_response": ai.FallbackText,
			"success":           false,
		})
		return
	}

	if _, err := s.db.AppendConversation(ctx, store.Conversation{
		SessionID:     sessionID,
		UserInput:     req.Message,
		AIResponse:    text,
		InputMethod:   req.InputMethod,
		AudioDuration: req.AudioDuration,
	}); err != nil {
		s.logger.Error("conversation persist failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error during chat")
		return
	}

	recommendations := s.knowledge.Recommendations(ctx, req.Message)
	if recommendations == nil {
		recommendations = []string{}
	}
	s.metrics.AIResponse(source)

	writeJSON(w, http.StatusOK, map[string]any{
		"response":        text,
		"source":          source,
		"recommendations": recommendations,
		"context_used":    ragContext != "",
		"success":         true,
	})
}
