package client

import "errors"

// Capture-layer errors. Permission and device failures block the voice
// feature entirely and are surfaced as alerts; the recording-state errors
// indicate a caller sequencing bug.
var (
	ErrPermissionDenied    = errors.New("microphone permission denied")
	ErrUnsupportedDevice   = errors.New("audio capture is not supported on this device")
	ErrRecordingInProgress = errors.New("a recording is already in progress")
	ErrNoActiveRecording   = errors.New("no active recording")
)
