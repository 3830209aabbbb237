package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"
)

// TranscribeResult is the transcription endpoint's response contract.
type TranscribeResult struct {
	Success    bool    `json:"success"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// ChatRequest is the chat endpoint's request contract.
type ChatRequest struct {
	Message       string      `json:"message"`
	SessionID     string      `json:"session_id"`
	InputMethod   InputMethod `json:"-"`
	AudioDuration float64     `json:"audio_duration"`
}

// ChatResult is the chat endpoint's response contract.
type ChatResult struct {
	Success          bool     `json:"success"`
	Response         string   `json:"response,omitempty"`
	Source           string   `json:"source,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
	ContextUsed      bool     `json:"context_used,omitempty"`
	Error            string   `json:"error,omitempty"`
	FallbackResponse string   `json:"fallback_response,omitempty"`
}

// SynthesizeRequest is the synthesis endpoint's request contract.
type SynthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// SynthesisResult is the synthesis endpoint's response contract.
type SynthesisResult struct {
	Success   bool   `json:"success"`
	AudioData string `json:"audio_data,omitempty"` // base64-encoded
	Format    string `json:"format,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SessionInfo is returned when a study session is created.
type SessionInfo struct {
	ID          string `json:"id"`
	SessionName string `json:"session_name"`
	CreatedAt   string `json:"created_at"`
	Success     bool   `json:"success"`
}

// Backend is the request/response surface the controller depends on: the
// three endpoints of the study assistant API.
type Backend interface {
	Transcribe(ctx context.Context, clip *Clip) (*TranscribeResult, error)
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesisResult, error)
}

// APIClient talks to the study assistant backend over HTTP.
//
// Endpoint failures come back in two shapes: transport/parse errors are
// returned as Go errors, while application-level failures arrive as decoded
// results with Success=false. The controller treats both as the same failure
// class per endpoint.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// APIOption customizes an APIClient.
type APIOption func(*APIClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) APIOption {
	return func(c *APIClient) { c.httpClient = hc }
}

// NewAPIClient creates a client for the API rooted at baseURL.
func NewAPIClient(baseURL string, opts ...APIOption) *APIClient {
	c := &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newDefaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newDefaultHTTPClient sets transport-level timeouts only; overall request
// lifetime stays under the caller's context.
func newDefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ForceAttemptHTTP2:     true,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
		},
	}
}

// NewSession asks the backend for a fresh study session.
func (c *APIClient) NewSession(ctx context.Context, name string) (*SessionInfo, error) {
	body, err := json.Marshal(map[string]string{"session_name": name})
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}
	var info SessionInfo
	if err := c.postJSON(ctx, "/api/session", body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Transcribe uploads a recorded clip as a multipart form.
func (c *APIClient) Transcribe(ctx context.Context, clip *Clip) (*TranscribeResult, error) {
	if clip == nil || len(clip.WAV) == 0 {
		return nil, fmt.Errorf("transcribe: empty clip")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return nil, fmt.Errorf("transcribe: create form: %w", err)
	}
	if _, err := part.Write(clip.WAV); err != nil {
		return nil, fmt.Errorf("transcribe: write form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("transcribe: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/transcribe", &buf)
	if err != nil {
		return nil, fmt.Errorf("transcribe: create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var out TranscribeResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends a message to the conversation endpoint.
func (c *APIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	payload := struct {
		Message       string  `json:"message"`
		SessionID     string  `json:"session_id"`
		InputMethod   string  `json:"input_method"`
		AudioDuration float64 `json:"audio_duration"`
	}{
		Message:       req.Message,
		SessionID:     req.SessionID,
		InputMethod:   req.InputMethod.String(),
		AudioDuration: req.AudioDuration,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	var out ChatResult
	if err := c.postJSON(ctx, "/api/chat", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Synthesize asks the backend to render text as audio.
func (c *APIClient) Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesisResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal synthesize request: %w", err)
	}
	var out SynthesisResult
	if err := c.postJSON(ctx, "/api/synthesize", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) postJSON(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do executes the request and decodes the JSON body into out. Non-2xx
// statuses are not errors by themselves: the API reports failures inside the
// response envelope, which callers inspect via the Success field.
func (c *APIClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response %s: %w", req.URL.Path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s (status %d): %w", req.URL.Path, resp.StatusCode, err)
	}
	return nil
}
