// Package tts provides text-to-speech functionality.
package tts

import "context"

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)

	// Voices lists the available English voices.
	Voices(ctx context.Context) ([]Voice, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice string  // Provider-specific voice name
	Speed float64 // Speaking rate multiplier, 1.0 is normal
}

// Synthesis is the result of text-to-speech conversion.
type Synthesis struct {
	Audio  []byte // Encoded audio
	Format string // Audio format, e.g. "mp3"
}

// Voice describes an available synthesis voice.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}
