// Package ai generates study-focused text through hosted language models.
// Providers are tried in a fixed order; the first that produces text wins,
// and its name is reported as the response source.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Turn is one past user/assistant exchange supplied as conversational
// context.
type Turn struct {
	UserInput  string
	AIResponse string
}

// Request is a single generation request.
type Request struct {
	System      string
	Prompt      string
	History     []Turn
	MaxTokens   int
	Temperature float64
}

// Provider generates a text completion for a request.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// FallbackText is the reply of last resort when every provider fails.
const FallbackText = "I'm having trouble connecting to my AI services right now. " +
	"Please try again in a moment, or check that your API keys are properly configured."

// ErrNoProvider is returned when the chain is empty or exhausted.
var ErrNoProvider = errors.New("no AI provider available")

// Chain tries providers in order.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain builds a provider chain. Nil providers are skipped so callers can
// pass optionally-configured providers directly.
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{logger: logger}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Available reports whether at least one provider is configured.
func (c *Chain) Available() bool {
	return len(c.providers) > 0
}

// Generate returns the first successful completion along with the producing
// provider's name.
func (c *Chain) Generate(ctx context.Context, req Request) (text, source string, err error) {
	if len(c.providers) == 0 {
		return "", "", ErrNoProvider
	}
	var lastErr error
	for _, p := range c.providers {
		text, err := p.Generate(ctx, req)
		if err != nil {
			c.logger.Warn("ai provider failed", "provider", p.Name(), "error", err)
			lastErr = err
			continue
		}
		if text == "" {
			c.logger.Warn("ai provider returned empty text", "provider", p.Name())
			continue
		}
		return text, p.Name(), nil
	}
	if lastErr != nil {
		return "", "", fmt.Errorf("all providers failed: %w", lastErr)
	}
	return "", "", ErrNoProvider
}
