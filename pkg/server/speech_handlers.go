package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/voxstudy/voxstudy/pkg/server/apierror"
	"github.com/voxstudy/voxstudy/pkg/speech/stt"
	"github.com/voxstudy/voxstudy/pkg/speech/tts"
)

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.sttp == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcription service not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read audio file")
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "No audio file selected")
		return
	}

	var transcript *stt.Transcript
	err = s.breaker.Call("assemblyai", func() error {
		var callErr error
		transcript, callErr = s.sttp.Transcribe(r.Context(), bytes.NewReader(audio))
		return callErr
	})
	if err != nil {
		s.logger.Error("transcription failed", "error", err)
		apiErr, status := apierror.FromError(err, "Transcription failed")
		writeError(w, status, apiErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"text":       transcript.Text,
		"confidence": transcript.Confidence,
		"duration":   transcript.Duration,
		"success":    true,
	})
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if s.ttsp == nil {
		writeError(w, http.StatusServiceUnavailable, "Speech synthesis service not configured")
		return
	}

	var req struct {
		Text  string  `json:"text"`
		Voice string  `json:"voice"`
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}

	var syn *tts.Synthesis
	err := s.breaker.Call("google_tts", func() error {
		var callErr error
		syn, callErr = s.ttsp.Synthesize(r.Context(), req.Text, tts.SynthesizeOptions{
			Voice: req.Voice,
			Speed: req.Speed,
		})
		return callErr
	})
	if err != nil {
		s.logger.Error("speech synthesis failed", "error", err)
		apiErr, status := apierror.FromError(err, "Speech synthesis failed")
		writeError(w, status, apiErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"audio_data": base64.StdEncoding.EncodeToString(syn.Audio),
		"format":     syn.Format,
		"success":    true,
	})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.ttsp == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"voices":  []tts.Voice{},
			"success": false,
			"error":   "Speech synthesis service not configured",
		})
		return
	}

	voices, err := s.ttsp.Voices(r.Context())
	if err != nil {
		s.logger.Error("voice listing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"voices":  []tts.Voice{},
			"success": false,
			"error":   "Could not list voices",
		})
		return
	}
	if voices == nil {
		voices = []tts.Voice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"voices":  voices,
		"success": true,
	})
}
