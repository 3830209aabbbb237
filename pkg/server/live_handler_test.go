package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxstudy/voxstudy/pkg/speech/stt"
)

// fakeStreamingSTT stands in for the upstream streaming transcription
// service: every audio frame is answered with a final turn, and a text
// message (the session's terminate) ends the stream.
func fakeStreamingSTT(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]any{"type": "Begin", "id": "s1"})
		for {
			msgType, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch msgType {
			case websocket.BinaryMessage:
				conn.WriteJSON(map[string]any{"type": "Turn", "transcript": "live hello", "end_of_turn": true})
			case websocket.TextMessage:
				conn.WriteJSON(map[string]any{"type": "Termination"})
				return
			}
		}
	}))
}

func TestLiveBridgesAudioToTranscripts(t *testing.T) {
	upstream := fakeStreamingSTT(t)
	defer upstream.Close()

	srv := New(testConfig(), Deps{
		Store:  newFakeStore(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		RealtimeSTT: func() (*stt.RealtimeSession, error) {
			return stt.DialRealtime(stt.RealtimeConfig{
				APIKey: "key",
				URL:    "ws" + strings.TrimPrefix(upstream.URL, "http"),
			})
		},
	})
	front := httptest.NewServer(srv.Handler())
	defer front.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(front.URL, "http")+"/api/live", nil)
	if err != nil {
		t.Fatalf("dial live: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 320)); err != nil {
		t.Fatalf("send audio: %v", err)
	}

	var msg struct {
		Type       string `json:"type"`
		Transcript string `json:"transcript"`
		Final      bool   `json:"final"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if msg.Type != "transcript" || msg.Transcript != "live hello" || !msg.Final {
		t.Fatalf("transcript message = %+v", msg)
	}

	// The stop control message ends the bridge; the server then tears the
	// socket down.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`)); err != nil {
		t.Fatalf("send stop: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestLiveWithoutRealtimeProviderIsServiceUnavailable(t *testing.T) {
	env := newTestEnv(testConfig())
	rec, parsed := doJSON(t, env.server.Handler(), http.MethodGet, "/api/live", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if parsed["success"] != false {
		t.Fatalf("body = %v", parsed)
	}
}

func TestLiveUpstreamDialFailureReportsError(t *testing.T) {
	srv := New(testConfig(), Deps{
		Store:  newFakeStore(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		RealtimeSTT: func() (*stt.RealtimeSession, error) {
			return stt.DialRealtime(stt.RealtimeConfig{APIKey: "key", URL: "ws://127.0.0.1:1"})
		},
	})
	front := httptest.NewServer(srv.Handler())
	defer front.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(front.URL, "http")+"/api/live", nil)
	if err != nil {
		t.Fatalf("dial live: %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read error message: %v", err)
	}
	if msg.Type != "error" || msg.Error == "" {
		t.Fatalf("error message = %+v", msg)
	}
}
