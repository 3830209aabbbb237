package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// liveMaxFrameBytes bounds one inbound audio frame.
const liveMaxFrameBytes = 64 * 1024

type liveTranscriptMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript,omitempty"`
	Final      bool   `json:"final,omitempty"`
	Error      string `json:"error,omitempty"`
}

// handleLive bridges a browser WebSocket to the streaming transcription
// service. Binary frames carry 16-bit mono PCM; transcript updates flow back
// as JSON text frames.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.realtime == nil {
		writeError(w, http.StatusServiceUnavailable, "Live transcription not configured")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(s.cfg.CORSAllowedOrigins) == 0 {
				return true
			}
			_, ok := s.cfg.CORSAllowedOrigins[origin]
			return ok
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("live upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(liveMaxFrameBytes)

	session, err := s.realtime()
	if err != nil {
		s.logger.Error("live transcription dial failed", "error", err)
		_ = conn.WriteJSON(liveTranscriptMessage{Type: "error", Error: "Live transcription unavailable"})
		return
	}
	defer session.Close()

	// Writer: forward transcript updates until the upstream stream ends.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range session.Updates() {
			msg := liveTranscriptMessage{
				Type:       "transcript",
				Transcript: update.Text,
				Final:      update.Final,
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}()

	// Reader: forward audio frames until the client sends a stop control
	// message or hangs up.
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType == websocket.TextMessage {
			var ctl struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(data, &ctl) == nil && ctl.Type == "stop" {
				break
			}
			continue
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if err := session.SendAudio(data); err != nil {
			s.logger.Warn("live audio forward failed", "error", err)
			break
		}
	}

	session.Close()
	<-done
}
