package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/voxstudy/voxstudy/pkg/audio"
)

// OtoPlayer plays synthesized audio through the system speaker. One oto
// context is created per sample rate and reused; oto contexts cannot be
// re-created with a different rate in the same process, so replies at an
// unexpected rate are resampled by the backend, not here.
type OtoPlayer struct {
	mu   sync.Mutex
	ctx  *oto.Context
	rate int
}

// NewOtoPlayer returns an uninitialized player; the speaker context is
// created on first playback.
func NewOtoPlayer() *OtoPlayer {
	return &OtoPlayer{}
}

func (p *OtoPlayer) context(sampleRate int) (*oto.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx != nil {
		if p.rate != sampleRate {
			return nil, fmt.Errorf("speaker is bound to %d Hz, got %d Hz", p.rate, sampleRate)
		}
		return p.ctx, nil
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready
	p.ctx = ctx
	p.rate = sampleRate
	return ctx, nil
}

// Play decodes data according to format ("mp3", "wav", or raw "pcm") and
// blocks until playback finishes or ctx is cancelled.
func (p *OtoPlayer) Play(ctx context.Context, data []byte, format string) error {
	pcm, rate, err := decodeForPlayback(data, format)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return fmt.Errorf("playback: empty audio")
	}

	otoCtx, err := p.context(rate)
	if err != nil {
		return err
	}

	player := otoCtx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()

	deadline := audio.PCMDuration(len(pcm), rate) + time.Second
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-tick.C:
		}
	}
	return nil
}

func decodeForPlayback(data []byte, format string) (pcm []byte, sampleRate int, err error) {
	switch format {
	case "mp3", "":
		dec, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			return nil, 0, fmt.Errorf("decode mp3: %w", err)
		}
		raw, err := io.ReadAll(dec)
		if err != nil {
			return nil, 0, fmt.Errorf("decode mp3: %w", err)
		}
		// go-mp3 always emits 16-bit stereo; fold to mono.
		return stereoToMono(raw), dec.SampleRate(), nil
	case "wav":
		pcm, rate, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, 0, err
		}
		return pcm, rate, nil
	case "pcm":
		return data, audio.DefaultPlaybackRate, nil
	default:
		return nil, 0, fmt.Errorf("playback: unsupported format %q", format)
	}
}

func stereoToMono(raw []byte) []byte {
	if len(raw)%4 != 0 {
		raw = raw[:len(raw)-len(raw)%4]
	}
	mono := make([]byte, 0, len(raw)/2)
	for i := 0; i+3 < len(raw); i += 4 {
		l := int16(uint16(raw[i]) | uint16(raw[i+1])<<8)
		r := int16(uint16(raw[i+2]) | uint16(raw[i+3])<<8)
		m := int16((int32(l) + int32(r)) / 2)
		mono = append(mono, byte(uint16(m)&0xff), byte(uint16(m)>>8))
	}
	return mono
}
