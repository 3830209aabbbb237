package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model override is given.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini generates completions through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini provider. Returns (nil, nil) when apiKey is
// empty so it can be dropped from a chain without a separate check.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Generate sends the history followed by the prompt as alternating
// user/model turns.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	var contents []*genai.Content
	history := req.History
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	for _, turn := range history {
		contents = append(contents,
			genai.NewContentFromText(turn.UserInput, genai.RoleUser),
			genai.NewContentFromText(turn.AIResponse, genai.RoleModel),
		)
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	system := req.System
	if system == "" {
		system = StudySystem
	}
	maxTokens := int32(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 500
	}
	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = 0.7
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		MaxOutputTokens:   maxTokens,
		Temperature:       genai.Ptr(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini api: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini api: empty response")
	}
	return strings.TrimSpace(text), nil
}
