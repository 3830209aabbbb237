// Package audio provides WAV framing helpers for 16-bit little-endian mono PCM,
// the interchange format between microphone capture and the transcription API.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	wavHeaderSize  = 44
	bytesPerSample = 2
)

// DefaultPlaybackRate is the sample rate assumed for raw PCM replies that
// carry no container metadata.
const DefaultPlaybackRate = 24000

// Header is the 44-byte canonical RIFF/WAVE header for PCM audio.
type Header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV wraps raw s16le mono PCM bytes in a WAV container.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("encode wav: empty pcm")
	}
	if len(pcm)%bytesPerSample != 0 {
		return nil, fmt.Errorf("encode wav: pcm length %d is not sample-aligned", len(pcm))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("encode wav: sample rate must be > 0, got %d", sampleRate)
	}

	dataSize := uint32(len(pcm))
	hdr := Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * bytesPerSample,
		BlockAlign:    bytesPerSample,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return nil, fmt.Errorf("encode wav: write header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// DecodeWAV extracts the raw PCM payload and sample rate from a WAV container
// produced by EncodeWAV (PCM, mono, 16-bit).
func DecodeWAV(data []byte) ([]byte, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("decode wav: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	var hdr Header
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr); err != nil {
		return nil, 0, fmt.Errorf("decode wav: read header: %w", err)
	}
	if string(hdr.ChunkID[:]) != "RIFF" || string(hdr.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("decode wav: not a RIFF/WAVE stream")
	}
	if hdr.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("decode wav: unsupported audio format %d", hdr.AudioFormat)
	}
	if hdr.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("decode wav: unsupported bits per sample %d", hdr.BitsPerSample)
	}

	pcm := data[wavHeaderSize:]
	if int(hdr.Subchunk2Size) < len(pcm) {
		pcm = pcm[:hdr.Subchunk2Size]
	}
	return pcm, int(hdr.SampleRate), nil
}

// PCMDuration reports the play time of s16le mono PCM at the given rate.
func PCMDuration(pcmBytes int, sampleRate int) time.Duration {
	if sampleRate <= 0 || pcmBytes <= 0 {
		return 0
	}
	samples := pcmBytes / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
