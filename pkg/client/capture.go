package client

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/voxstudy/voxstudy/pkg/audio"
)

// DefaultSampleRate is the capture rate the transcription service expects.
const DefaultSampleRate = 16000

// DeviceConfig carries the processing hints requested when a capture device
// is opened. Devices that cannot honor a hint ignore it.
type DeviceConfig struct {
	SampleRate       int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// CaptureDevice abstracts a hardware microphone. Implementations deliver raw
// s16le mono PCM fragments to the callback passed to Open, and must not
// invoke it after Stop returns.
//
// Open reports ErrPermissionDenied or ErrUnsupportedDevice (possibly wrapped)
// when the platform refuses access or lacks the capability.
type CaptureDevice interface {
	Open(cfg DeviceConfig, onData func(fragment []byte)) error
	Start() error
	// Stop blocks until capture has fully ceased and the final fragment has
	// been delivered.
	Stop() error
	Close() error
}

// Clip is one finished recording bracket: every fragment emitted between
// Start and Stop, in arrival order, framed as a WAV stream.
type Clip struct {
	WAV        []byte
	SampleRate int
	Duration   time.Duration
}

// Recorder turns a CaptureDevice into single encoded clips per start/stop
// bracket. The device is acquired lazily on the first Start and reused for
// subsequent recordings until Close.
type Recorder struct {
	device CaptureDevice
	cfg    DeviceConfig

	mu        sync.Mutex
	opened    bool
	recording bool
	buf       bytes.Buffer
}

// NewRecorder wraps device. A zero cfg.SampleRate defaults to
// DefaultSampleRate; echo cancellation, noise suppression and auto gain are
// always requested.
func NewRecorder(device CaptureDevice, cfg DeviceConfig) *Recorder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	cfg.EchoCancellation = true
	cfg.NoiseSuppression = true
	cfg.AutoGainControl = true
	return &Recorder{device: device, cfg: cfg}
}

// Initialize acquires the capture device if it has not been acquired yet.
func (r *Recorder) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initializeLocked()
}

func (r *Recorder) initializeLocked() error {
	if r.opened {
		return nil
	}
	if err := r.device.Open(r.cfg, r.appendFragment); err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}
	r.opened = true
	return nil
}

func (r *Recorder) appendFragment(fragment []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	r.buf.Write(fragment)
}

// Start begins a recording bracket, lazily initializing the device.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrRecordingInProgress
	}
	if err := r.initializeLocked(); err != nil {
		return err
	}

	r.buf.Reset()
	r.recording = true
	if err := r.device.Start(); err != nil {
		r.recording = false
		return fmt.Errorf("start capture: %w", err)
	}
	return nil
}

// Stop ends the current bracket and returns the finished clip. The device's
// Stop blocks until the final fragment has been flushed, so the clip is
// guaranteed to contain the complete bracket.
func (r *Recorder) Stop() (*Clip, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, ErrNoActiveRecording
	}
	r.mu.Unlock()

	// Stop outside the lock: the device delivers its final fragments through
	// appendFragment, which needs the lock.
	if err := r.device.Stop(); err != nil {
		r.mu.Lock()
		r.recording = false
		r.buf.Reset()
		r.mu.Unlock()
		return nil, fmt.Errorf("stop capture: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	pcm := make([]byte, r.buf.Len())
	copy(pcm, r.buf.Bytes())
	r.buf.Reset()

	wav, err := audio.EncodeWAV(pcm, r.cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("encode clip: %w", err)
	}
	return &Clip{
		WAV:        wav,
		SampleRate: r.cfg.SampleRate,
		Duration:   audio.PCMDuration(len(pcm), r.cfg.SampleRate),
	}, nil
}

// Close releases the device. Idempotent and safe when never initialized.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.opened {
		return nil
	}
	r.opened = false
	r.recording = false
	r.buf.Reset()
	if err := r.device.Close(); err != nil {
		return fmt.Errorf("close capture device: %w", err)
	}
	return nil
}
