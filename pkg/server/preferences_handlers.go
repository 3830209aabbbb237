package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voxstudy/voxstudy/pkg/store"
)

type preferencesPayload struct {
	SessionKey     string  `json:"session_key"`
	VoiceEnabled   bool    `json:"voice_enabled"`
	SpeechRate     float64 `json:"speech_rate"`
	PreferredVoice string  `json:"preferred_voice"`
	Theme          string  `json:"theme"`
}

func defaultPreferences(sessionKey string) preferencesPayload {
	return preferencesPayload{
		SessionKey:     sessionKey,
		VoiceEnabled:   true,
		SpeechRate:     1.0,
		PreferredVoice: "en-US-Standard-A",
		Theme:          "auto",
	}
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("session_key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "session_key required")
		return
	}

	prefs, err := s.db.GetPreferences(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{
			"preferences": defaultPreferences(key),
			"success":     true,
		})
		return
	}
	if err != nil {
		s.logger.Error("preferences lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not load preferences")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"preferences": preferencesPayload{
			SessionKey:     prefs.SessionKey,
			VoiceEnabled:   prefs.VoiceEnabled,
			SpeechRate:     prefs.SpeechRate,
			PreferredVoice: prefs.PreferredVoice,
			Theme:          prefs.Theme,
		},
		"success": true,
	})
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil || req.SessionKey == "" {
		writeError(w, http.StatusBadRequest, "session_key required")
		return
	}
	if req.SpeechRate <= 0 {
		req.SpeechRate = 1.0
	}
	if req.PreferredVoice == "" {
		req.PreferredVoice = "en-US-Standard-A"
	}
	if req.Theme == "" {
		req.Theme = "auto"
	}

	err := s.db.UpsertPreferences(r.Context(), store.Preferences{
		SessionKey:     req.SessionKey,
		VoiceEnabled:   req.VoiceEnabled,
		SpeechRate:     req.SpeechRate,
		PreferredVoice: req.PreferredVoice,
		Theme:          req.Theme,
	})
	if err != nil {
		s.logger.Error("preferences save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not save preferences")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"preferences": req,
		"success":     true,
	})
}
