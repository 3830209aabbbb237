package client

import (
	"bytes"
	"errors"
	"testing"

	"github.com/voxstudy/voxstudy/pkg/audio"
)

// fakeDevice queues fragments and delivers them during Start/Stop, mimicking
// a platform device that flushes its last fragment while Stop blocks.
type fakeDevice struct {
	openErr  error
	startErr error

	onData      func([]byte)
	opens       int
	starts      int
	stops       int
	closed      int
	onStart     [][]byte // fragments delivered immediately after Start
	onStopFlush [][]byte // fragments delivered while Stop blocks
}

func (d *fakeDevice) Open(cfg DeviceConfig, onData func(fragment []byte)) error {
	if d.openErr != nil {
		return d.openErr
	}
	d.opens++
	d.onData = onData
	return nil
}

func (d *fakeDevice) Start() error {
	if d.startErr != nil {
		return d.startErr
	}
	d.starts++
	for _, f := range d.onStart {
		d.onData(f)
	}
	return nil
}

func (d *fakeDevice) Stop() error {
	d.stops++
	for _, f := range d.onStopFlush {
		d.onData(f)
	}
	return nil
}

func (d *fakeDevice) Close() error {
	d.closed++
	return nil
}

func TestStopWithoutStartFails(t *testing.T) {
	r := NewRecorder(&fakeDevice{}, DeviceConfig{})

	clip, err := r.Stop()
	if !errors.Is(err, ErrNoActiveRecording) {
		t.Fatalf("Stop error = %v, want ErrNoActiveRecording", err)
	}
	if clip != nil {
		t.Fatalf("Stop returned a partial clip: %+v", clip)
	}
}

func TestDoubleStartFails(t *testing.T) {
	r := NewRecorder(&fakeDevice{}, DeviceConfig{})
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(); !errors.Is(err, ErrRecordingInProgress) {
		t.Fatalf("second Start error = %v, want ErrRecordingInProgress", err)
	}
}

func TestBracketCollectsAllFragmentsInOrder(t *testing.T) {
	dev := &fakeDevice{
		onStart:     [][]byte{{0x01, 0x00}, {0x02, 0x00}},
		onStopFlush: [][]byte{{0x03, 0x00}},
	}
	r := NewRecorder(dev, DeviceConfig{SampleRate: 16000})

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clip, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	pcm, rate, err := audio.DecodeWAV(clip.WAV)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	want := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	if !bytes.Equal(pcm, want) {
		t.Errorf("pcm = %v, want %v", pcm, want)
	}
	if rate != 16000 {
		t.Errorf("rate = %d, want 16000", rate)
	}
}

func TestFragmentsAfterStopAreDropped(t *testing.T) {
	dev := &fakeDevice{onStart: [][]byte{{0x01, 0x00}}}
	r := NewRecorder(dev, DeviceConfig{})

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Late delivery outside a bracket must not leak into the next clip.
	dev.onData([]byte{0x09, 0x00})

	if err := r.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	dev.onData([]byte{0x02, 0x00})
	clip, err := r.Stop()
	if err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	pcm, _, err := audio.DecodeWAV(clip.WAV)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if !bytes.Equal(pcm, []byte{0x02, 0x00}) {
		t.Errorf("pcm = %v, want only the second bracket's fragment", pcm)
	}
}

func TestDeviceOpenedOnceAcrossBrackets(t *testing.T) {
	dev := &fakeDevice{onStart: [][]byte{{0x01, 0x00}}}
	r := NewRecorder(dev, DeviceConfig{})

	for i := 0; i < 3; i++ {
		if err := r.Start(); err != nil {
			t.Fatalf("Start %d: %v", i, err)
		}
		if _, err := r.Stop(); err != nil {
			t.Fatalf("Stop %d: %v", i, err)
		}
	}
	if dev.opens != 1 {
		t.Errorf("device opened %d times, want 1", dev.opens)
	}
}

func TestStartSurfacesPermissionError(t *testing.T) {
	dev := &fakeDevice{openErr: ErrPermissionDenied}
	r := NewRecorder(dev, DeviceConfig{})
	if err := r.Start(); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Start error = %v, want ErrPermissionDenied", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRecorder(dev, DeviceConfig{})

	// Never initialized.
	if err := r.Close(); err != nil {
		t.Fatalf("Close before init: %v", err)
	}

	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if dev.closed != 1 {
		t.Errorf("device closed %d times, want 1", dev.closed)
	}
}
