package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AssemblyAIBaseURL is the default AssemblyAI REST endpoint.
const AssemblyAIBaseURL = "https://api.assemblyai.com/v2"

// defaultConfidence mirrors the value reported when the service omits a
// confidence score.
const defaultConfidence = 0.8

// AssemblyAI transcribes recordings through the AssemblyAI upload and
// polling API.
type AssemblyAI struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
}

// AssemblyAIOption configures an AssemblyAI provider.
type AssemblyAIOption func(*AssemblyAI)

// WithAssemblyAIBaseURL overrides the API endpoint.
func WithAssemblyAIBaseURL(u string) AssemblyAIOption {
	return func(a *AssemblyAI) { a.baseURL = u }
}

// WithAssemblyAIHTTPClient overrides the HTTP client.
func WithAssemblyAIHTTPClient(c *http.Client) AssemblyAIOption {
	return func(a *AssemblyAI) { a.httpClient = c }
}

// WithAssemblyAIPollInterval overrides the delay between status polls.
func WithAssemblyAIPollInterval(d time.Duration) AssemblyAIOption {
	return func(a *AssemblyAI) { a.pollInterval = d }
}

// NewAssemblyAI creates an AssemblyAI provider. Returns nil when apiKey is
// empty.
func NewAssemblyAI(apiKey string, opts ...AssemblyAIOption) *AssemblyAI {
	if apiKey == "" {
		return nil
	}
	a := &AssemblyAI{
		apiKey:       apiKey,
		baseURL:      AssemblyAIBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AssemblyAI) Name() string { return "assemblyai" }

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptJob struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Text          string   `json:"text"`
	Confidence    *float64 `json:"confidence"`
	AudioDuration float64  `json:"audio_duration"`
	Error         string   `json:"error"`
}

// Transcribe uploads the audio, submits a transcription job and polls until
// the job completes or ctx is cancelled.
func (a *AssemblyAI) Transcribe(ctx context.Context, audio io.Reader) (*Transcript, error) {
	uploadURL, err := a.upload(ctx, audio)
	if err != nil {
		return nil, err
	}

	jobID, err := a.submit(ctx, uploadURL)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	for {
		job, err := a.poll(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case "completed":
			confidence := defaultConfidence
			if job.Confidence != nil {
				confidence = *job.Confidence
			}
			return &Transcript{
				Text:       job.Text,
				Confidence: confidence,
				Duration:   job.AudioDuration,
			}, nil
		case "error":
			return nil, fmt.Errorf("assemblyai transcription failed: %s", job.Error)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *AssemblyAI) upload(ctx context.Context, audio io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint("/upload"), audio)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var parsed uploadResponse
	if err := a.do(req, &parsed); err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	if parsed.UploadURL == "" {
		return "", fmt.Errorf("upload audio: empty upload_url")
	}
	return parsed.UploadURL, nil
}

func (a *AssemblyAI) submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(map[string]string{"audio_url": audioURL})
	if err != nil {
		return "", fmt.Errorf("marshal job request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint("/transcript"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create job request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var job transcriptJob
	if err := a.do(req, &job); err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	if job.ID == "" {
		return "", fmt.Errorf("submit job: empty id")
	}
	return job.ID, nil
}

func (a *AssemblyAI) poll(ctx context.Context, jobID string) (*transcriptJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint("/transcript/"+jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)

	var job transcriptJob
	if err := a.do(req, &job); err != nil {
		return nil, fmt.Errorf("poll job: %w", err)
	}
	return &job, nil
}

func (a *AssemblyAI) do(req *http.Request, out any) error {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("assemblyai api: %s", apiErr.Error)
		}
		return fmt.Errorf("assemblyai api: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (a *AssemblyAI) endpoint(path string) string {
	return strings.TrimRight(a.baseURL, "/") + path
}
