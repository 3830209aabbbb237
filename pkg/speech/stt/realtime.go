package stt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RealtimeURL is the AssemblyAI streaming endpoint.
const RealtimeURL = "wss://streaming.assemblyai.com/v3/ws"

// Update is a live transcript update.
type Update struct {
	Text  string
	Final bool
}

// RealtimeSession streams PCM audio to AssemblyAI and emits transcript
// updates as they arrive. Audio must be 16-bit little-endian mono PCM at the
// configured sample rate.
type RealtimeSession struct {
	conn    *websocket.Conn
	updates chan Update
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// RealtimeConfig configures a streaming session.
type RealtimeConfig struct {
	APIKey     string
	SampleRate int           // defaults to 16000
	URL        string        // defaults to RealtimeURL
	Logger     *slog.Logger  // defaults to slog.Default
	Timeout    time.Duration // handshake timeout, defaults to 10s
}

type realtimeTurn struct {
	Type          string `json:"type"`
	Transcript    string `json:"transcript"`
	TurnFormatted bool   `json:"turn_is_formatted"`
	EndOfTurn     bool   `json:"end_of_turn"`
	Error         string `json:"error"`
}

// DialRealtime opens a streaming transcription session.
func DialRealtime(cfg RealtimeConfig) (*RealtimeSession, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("assemblyai api key is empty")
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.URL == "" {
		cfg.URL = RealtimeURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	params := url.Values{}
	params.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	params.Set("encoding", "pcm_s16le")
	params.Set("format_turns", "true")

	dialer := websocket.Dialer{HandshakeTimeout: cfg.Timeout}
	conn, resp, err := dialer.Dial(cfg.URL+"?"+params.Encode(), map[string][]string{
		"Authorization": {cfg.APIKey},
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect to assemblyai (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("connect to assemblyai: %w", err)
	}

	s := &RealtimeSession{
		conn:    conn,
		updates: make(chan Update, 64),
		logger:  cfg.Logger,
	}
	go s.readLoop()
	return s, nil
}

// Updates returns the transcript update stream. The channel is closed when
// the session ends.
func (s *RealtimeSession) Updates() <-chan Update { return s.updates }

// SendAudio forwards a PCM fragment to the service.
func (s *RealtimeSession) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// Close terminates the session. Safe to call more than once.
func (s *RealtimeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
	return s.conn.Close()
}

func (s *RealtimeSession) readLoop() {
	defer close(s.updates)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.Warn("assemblyai stream read failed", "error", err)
			}
			return
		}

		var msg realtimeTurn
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn("assemblyai stream sent malformed message", "error", err)
			continue
		}
		switch msg.Type {
		case "Begin":
		case "Turn":
			if msg.Transcript == "" {
				continue
			}
			select {
			case s.updates <- Update{Text: msg.Transcript, Final: msg.EndOfTurn}:
			default:
				// Drop updates rather than stall the read loop.
			}
		case "Termination":
			return
		case "Error":
			s.logger.Warn("assemblyai stream error", "error", msg.Error)
		}
	}
}
