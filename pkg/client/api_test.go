package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/voxstudy/voxstudy/pkg/audio"
)

func testClip(t *testing.T) *Clip {
	t.Helper()
	wav, err := audio.EncodeWAV([]byte{0x01, 0x00, 0x02, 0x00}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return &Clip{WAV: wav, SampleRate: 16000}
}

func TestTranscribeSendsMultipartAudio(t *testing.T) {
	var gotField string
	var gotBytes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/transcribe" {
			t.Errorf("path = %q", r.URL.Path)
		}
		file, hdr, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		gotField = hdr.Filename
		buf := make([]byte, hdr.Size+1)
		n, _ := file.Read(buf)
		gotBytes = n
		_ = json.NewEncoder(w).Encode(TranscribeResult{Success: true, Text: "hi", Duration: 0.5})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL)
	res, err := c.Transcribe(context.Background(), testClip(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !res.Success || res.Text != "hi" {
		t.Errorf("result = %+v", res)
	}
	if gotField != "recording.wav" {
		t.Errorf("filename = %q, want recording.wav", gotField)
	}
	if gotBytes == 0 {
		t.Error("no audio bytes received")
	}
}

func TestChatWireFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ChatResult{Success: true, Response: "R", Recommendations: []string{"a"}})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL)
	res, err := c.Chat(context.Background(), ChatRequest{
		Message:       "q",
		SessionID:     "42",
		InputMethod:   MethodVoice,
		AudioDuration: 1.25,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	want := map[string]any{
		"message":        "q",
		"session_id":     "42",
		"input_method":   "voice",
		"audio_duration": 1.25,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("request body = %v, want %v", got, want)
	}
	if res.Response != "R" || !reflect.DeepEqual(res.Recommendations, []string{"a"}) {
		t.Errorf("result = %+v", res)
	}
}

func TestErrorEnvelopeOnNon2xxIsNotATransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(ChatResult{
			Success:          false,
			Error:            "AI service unavailable",
			FallbackResponse: "try later",
		})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL)
	res, err := c.Chat(context.Background(), ChatRequest{Message: "q", SessionID: "1"})
	if err != nil {
		t.Fatalf("Chat returned transport error for decodable envelope: %v", err)
	}
	if res.Success || res.Error != "AI service unavailable" || res.FallbackResponse != "try later" {
		t.Errorf("result = %+v", res)
	}
}

func TestUndecodableResponseIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL)
	if _, err := c.Chat(context.Background(), ChatRequest{Message: "q", SessionID: "1"}); err == nil {
		t.Fatal("Chat succeeded on an undecodable body")
	}
}

func TestNewSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["session_name"] != "biology" {
			t.Errorf("session_name = %q", body["session_name"])
		}
		_ = json.NewEncoder(w).Encode(SessionInfo{ID: "7", SessionName: "biology", Success: true})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL)
	info, err := c.NewSession(context.Background(), "biology")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if info.ID != "7" || !info.Success {
		t.Errorf("info = %+v", info)
	}
}
