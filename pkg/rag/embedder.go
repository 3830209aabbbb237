// Package rag retrieves knowledge-base context for study questions using
// vector similarity over embedded documents.
package rag

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

// Embedder converts text into embedding vectors.
type Embedder interface {
	// EmbedDocuments embeds texts for indexing.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)

	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// CohereEmbedBaseURL is the default Cohere API endpoint.
const CohereEmbedBaseURL = "https://api.cohere.com/v1"

// DefaultEmbedModel is the Cohere embedding model used when none is set.
const DefaultEmbedModel = "embed-english-v3.0"

// CohereEmbedder embeds text through the Cohere embed endpoint.
type CohereEmbedder struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// CohereEmbedderOption configures a CohereEmbedder.
type CohereEmbedderOption func(*CohereEmbedder)

// WithEmbedBaseURL overrides the API endpoint.
func WithEmbedBaseURL(u string) CohereEmbedderOption {
	return func(e *CohereEmbedder) { e.baseURL = u }
}

// WithEmbedModel overrides the embedding model.
func WithEmbedModel(m string) CohereEmbedderOption {
	return func(e *CohereEmbedder) { e.model = m }
}

// WithEmbedHTTPClient overrides the HTTP client.
func WithEmbedHTTPClient(c *http.Client) CohereEmbedderOption {
	return func(e *CohereEmbedder) { e.httpClient = c }
}

// NewCohereEmbedder creates a Cohere embedder. Returns nil when apiKey is
// empty.
func NewCohereEmbedder(apiKey string, opts ...CohereEmbedderOption) *CohereEmbedder {
	if apiKey == "" {
		return nil
	}
	e := &CohereEmbedder{
		apiKey:     apiKey,
		baseURL:    CohereEmbedBaseURL,
		model:      DefaultEmbedModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type cohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Message    string      `json:"message"`
}

// EmbedDocuments embeds texts with the search_document input type.
func (e *CohereEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	return e.embed(ctx, texts, "search_document")
}

// EmbedQuery embeds a query with the search_query input type.
func (e *CohereEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.embed(ctx, []string{text}, "search_query")
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("cohere embed: empty embeddings")
	}
	return vectors[0], nil
}

func (e *CohereEmbedder) embed(ctx context.Context, texts []string, inputType string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(cohereEmbedRequest{
		Texts:     texts,
		Model:     e.model,
		InputType: inputType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(e.baseURL, "/") + "/embed"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed cohereEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		if parsed.Message != "" {
			return nil, fmt.Errorf("cohere embed: %s", parsed.Message)
		}
		return nil, fmt.Errorf("cohere embed: status %d", resp.StatusCode)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("cohere embed: got %d embeddings for %d texts", len(parsed.Embeddings), len(texts))
	}
	return parsed.Embeddings, nil
}
