package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Player turns decoded audio bytes into sound. The CLI binds this to an oto
// speaker; tests use fakes.
type Player interface {
	Play(ctx context.Context, data []byte, format string) error
}

// PlaybackStrategy is one way of voicing assistant text. The controller
// holds an ordered list and tries each in sequence until one succeeds; a
// strategy failure is logged and never surfaced to the user.
type PlaybackStrategy interface {
	Name() string
	Play(ctx context.Context, text string) error
}

// SynthesisAPIStrategy voices text through the backend synthesis endpoint.
// It fails on transport errors, unsuccessful results, missing audio data, and
// player rejection, which hands playback to the next strategy.
type SynthesisAPIStrategy struct {
	Backend Backend
	Player  Player
	Voice   string
	Speed   float64
}

func (s *SynthesisAPIStrategy) Name() string { return "synthesis-api" }

func (s *SynthesisAPIStrategy) Play(ctx context.Context, text string) error {
	res, err := s.Backend.Synthesize(ctx, SynthesizeRequest{Text: text, Voice: s.Voice, Speed: s.Speed})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if !res.Success {
		if res.Error != "" {
			return fmt.Errorf("synthesize: %s", res.Error)
		}
		return errors.New("synthesize: unsuccessful result")
	}
	if res.AudioData == "" {
		return errors.New("synthesize: result carried no audio data")
	}
	data, err := base64.StdEncoding.DecodeString(res.AudioData)
	if err != nil {
		return fmt.Errorf("decode audio data: %w", err)
	}
	if err := s.Player.Play(ctx, data, res.Format); err != nil {
		return fmt.Errorf("play synthesized audio: %w", err)
	}
	return nil
}

// LocalEngineStrategy voices text with the host's speech synthesizer
// (say on darwin, espeak elsewhere), preferring a local English voice when
// one is enumerable and falling back to the engine default.
type LocalEngineStrategy struct {
	// Hooks for tests; nil values use the real implementations.
	GOOS     string
	LookPath func(file string) (string, error)
	Run      func(ctx context.Context, name string, args ...string) error
	Output   func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (s *LocalEngineStrategy) Name() string { return "local-engine" }

func (s *LocalEngineStrategy) goos() string {
	if s.GOOS != "" {
		return s.GOOS
	}
	return runtime.GOOS
}

func (s *LocalEngineStrategy) lookPath(file string) (string, error) {
	if s.LookPath != nil {
		return s.LookPath(file)
	}
	return exec.LookPath(file)
}

func (s *LocalEngineStrategy) run(ctx context.Context, name string, args ...string) error {
	if s.Run != nil {
		return s.Run(ctx, name, args...)
	}
	return exec.CommandContext(ctx, name, args...).Run()
}

func (s *LocalEngineStrategy) output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.Output != nil {
		return s.Output(ctx, name, args...)
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

func (s *LocalEngineStrategy) Play(ctx context.Context, text string) error {
	switch s.goos() {
	case "darwin":
		if _, err := s.lookPath("say"); err != nil {
			return fmt.Errorf("local speech engine unavailable: %w", err)
		}
		args := []string{}
		if voice := s.englishVoiceDarwin(ctx); voice != "" {
			args = append(args, "-v", voice)
		}
		args = append(args, text)
		if err := s.run(ctx, "say", args...); err != nil {
			return fmt.Errorf("say: %w", err)
		}
		return nil
	default:
		if _, err := s.lookPath("espeak"); err != nil {
			return fmt.Errorf("local speech engine unavailable: %w", err)
		}
		if err := s.run(ctx, "espeak", "-v", "en", text); err != nil {
			return fmt.Errorf("espeak: %w", err)
		}
		return nil
	}
}

// englishVoiceDarwin returns the first en_* voice from `say -v ?`, or "" when
// none can be enumerated.
func (s *LocalEngineStrategy) englishVoiceDarwin(ctx context.Context) string {
	out, err := s.output(ctx, "say", "-v", "?")
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "en_") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}
