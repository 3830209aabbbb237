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

// TogetherBaseURL is the default Together AI API endpoint.
const TogetherBaseURL = "https://api.together.xyz/v1"

// DefaultTogetherModel is used when no model override is given.
const DefaultTogetherModel = "meta-llama/Llama-3-8b-chat-hf"

// Together generates completions through Together AI's OpenAI-compatible
// chat completions endpoint.
type Together struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// TogetherOption configures a Together provider.
type TogetherOption func(*Together)

// WithTogetherBaseURL overrides the API endpoint.
func WithTogetherBaseURL(u string) TogetherOption {
	return func(t *Together) { t.baseURL = u }
}

// WithTogetherModel overrides the model.
func WithTogetherModel(m string) TogetherOption {
	return func(t *Together) { t.model = m }
}

// WithTogetherHTTPClient overrides the HTTP client.
func WithTogetherHTTPClient(c *http.Client) TogetherOption {
	return func(t *Together) { t.httpClient = c }
}

// NewTogether creates a Together provider. Returns nil when apiKey is empty
// so it can be dropped from a chain without a separate check.
func NewTogether(apiKey string, opts ...TogetherOption) *Together {
	if apiKey == "" {
		return nil
	}
	t := &Together{
		apiKey:     apiKey,
		baseURL:    TogetherBaseURL,
		model:      DefaultTogetherModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Together) Name() string { return "together_ai" }

type togetherMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type togetherRequest struct {
	Model       string            `json:"model"`
	Messages    []togetherMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float64           `json:"temperature"`
	TopP        float64           `json:"top_p"`
	Stop        []string          `json:"stop,omitempty"`
}

type togetherResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate sends the prompt with up to the last five history turns spliced in
// ahead of it.
func (t *Together) Generate(ctx context.Context, req Request) (string, error) {
	system := req.System
	if system == "" {
		system = StudySystem
	}
	messages := []togetherMessage{{Role: "system", Content: system}}
	history := req.History
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	for _, turn := range history {
		messages = append(messages,
			togetherMessage{Role: "user", Content: turn.UserInput},
			togetherMessage{Role: "assistant", Content: turn.AIResponse},
		)
	}
	messages = append(messages, togetherMessage{Role: "user", Content: req.Prompt})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	body, err := json.Marshal(togetherRequest{
		Model:       t.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        0.9,
		Stop:        []string{"<|eot_id|>", "<|end_of_text|>"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(t.baseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed togetherResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		if parsed.Error != nil {
			return "", fmt.Errorf("together api: %s (%s)", parsed.Error.Message, parsed.Error.Type)
		}
		return "", fmt.Errorf("together api: status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("together api: empty choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
