package stt

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestRealtimeSessionStreamsUpdates(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if got := r.URL.Query().Get("encoding"); got != "pcm_s16le" {
			t.Errorf("encoding = %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteJSON(map[string]any{"type": "Begin", "id": "s1"})

		// echo back a partial and a final turn once audio arrives
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteJSON(map[string]any{"type": "Turn", "transcript": "hello", "end_of_turn": false})
		conn.WriteJSON(map[string]any{"type": "Turn", "transcript": "hello world", "end_of_turn": true})
		conn.WriteJSON(map[string]any{"type": "Termination"})
	}))
	defer srv.Close()

	s, err := DialRealtime(RealtimeConfig{
		APIKey: "key",
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	if err != nil {
		t.Fatalf("DialRealtime: %v", err)
	}
	defer s.Close()

	if err := s.SendAudio(make([]byte, 320)); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	var got []Update
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case u, ok := <-s.Updates():
			if !ok {
				t.Fatalf("updates closed after %d updates", len(got))
			}
			got = append(got, u)
		case <-deadline:
			t.Fatalf("timed out after %d updates", len(got))
		}
	}
	if got[0].Text != "hello" || got[0].Final {
		t.Errorf("first update = %+v, want partial hello", got[0])
	}
	if got[1].Text != "hello world" || !got[1].Final {
		t.Errorf("second update = %+v, want final", got[1])
	}
}

func TestDialRealtimeRequiresKey(t *testing.T) {
	if _, err := DialRealtime(RealtimeConfig{}); err == nil {
		t.Fatal("want error for empty api key")
	}
}

func TestSendAudioAfterCloseFails(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s, err := DialRealtime(RealtimeConfig{
		APIKey: "key",
		URL:    "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	if err != nil {
		t.Fatalf("DialRealtime: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := s.SendAudio([]byte{1, 2}); err == nil {
		t.Fatal("want error sending after close")
	}
}
