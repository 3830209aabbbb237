// Package stt provides speech-to-text functionality.
package stt

import (
	"context"
	"io"
)

// Provider is the interface for speech-to-text services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Transcribe converts a complete audio recording to text.
	Transcribe(ctx context.Context, audio io.Reader) (*Transcript, error)
}

// Transcript is the result of transcription.
type Transcript struct {
	Text       string  // Full transcribed text
	Confidence float64 // Overall confidence, 0 when the service omits it
	Duration   float64 // Audio duration in seconds
}
