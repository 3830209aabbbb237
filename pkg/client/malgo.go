package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoDevice is the hardware CaptureDevice used by the terminal client. It
// owns a miniaudio context and one capture device, acquired on Open and
// reused across recording brackets.
type MalgoDevice struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	onData func([]byte)
}

// NewMalgoDevice returns an unopened device.
func NewMalgoDevice() *MalgoDevice {
	return &MalgoDevice{}
}

// Open acquires the platform audio context and initializes a capture device
// delivering s16le mono PCM at cfg.SampleRate. miniaudio has no explicit
// permission API; an init failure on a platform with microphone permission
// controls is reported as ErrPermissionDenied, everything else as
// ErrUnsupportedDevice.
func (d *MalgoDevice) Open(cfg DeviceConfig, onData func(fragment []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init audio context: %v", ErrUnsupportedDevice, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	d.onData = onData
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			frag := make([]byte, len(input))
			copy(frag, input)
			onData(frag)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		if errors.Is(err, malgo.ErrAccessDenied) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return fmt.Errorf("%w: init capture device: %v", ErrUnsupportedDevice, err)
	}

	d.ctx = ctx
	d.device = device
	return nil
}

// Start begins delivering fragments to the Open callback.
func (d *MalgoDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return ErrUnsupportedDevice
	}
	if err := d.device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

// Stop halts capture. malgo's Stop blocks until the device callback has
// drained, which gives the Recorder its final-fragment guarantee.
func (d *MalgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return ErrNoActiveRecording
	}
	if err := d.device.Stop(); err != nil {
		return fmt.Errorf("stop capture device: %w", err)
	}
	return nil
}

// Close releases the device and the audio context. Idempotent.
func (d *MalgoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
	return nil
}
