package ai

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

// CohereBaseURL is the default Cohere API endpoint.
const CohereBaseURL = "https://api.cohere.com/v1"

// Cohere generates completions through Cohere's chat endpoint.
type Cohere struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// CohereOption configures a Cohere provider.
type CohereOption func(*Cohere)

// WithCohereBaseURL overrides the API endpoint.
func WithCohereBaseURL(u string) CohereOption {
	return func(c *Cohere) { c.baseURL = u }
}

// WithCohereHTTPClient overrides the HTTP client.
func WithCohereHTTPClient(hc *http.Client) CohereOption {
	return func(c *Cohere) { c.httpClient = hc }
}

// NewCohere creates a Cohere provider. Returns nil when apiKey is empty.
func NewCohere(apiKey string, opts ...CohereOption) *Cohere {
	if apiKey == "" {
		return nil
	}
	c := &Cohere{
		apiKey:     apiKey,
		baseURL:    CohereBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cohere) Name() string { return "cohere" }

type cohereChatRequest struct {
	Message       string   `json:"message"`
	MaxTokens     int      `json:"max_tokens"`
	Temperature   float64  `json:"temperature"`
	K             int      `json:"k"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

type cohereChatResponse struct {
	Text    string `json:"text"`
	Message string `json:"message"`
}

// Generate sends the full prompt as a single chat message. History is folded
// into the prompt by the caller; Cohere's chat endpoint here is used
// stateless.
func (c *Cohere) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	body, err := json.Marshal(cohereChatRequest{
		Message:       req.Prompt,
		MaxTokens:     maxTokens,
		Temperature:   temperature,
		StopSequences: []string{"--"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.baseURL, "/") + "/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed cohereChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		if parsed.Message != "" {
			return "", fmt.Errorf("cohere api: %s", parsed.Message)
		}
		return "", fmt.Errorf("cohere api: status %d", resp.StatusCode)
	}
	return strings.TrimSpace(parsed.Text), nil
}
