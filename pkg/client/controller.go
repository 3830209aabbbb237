// Package client implements the interaction layer of the study assistant: a
// microphone recorder producing one encoded clip per start/stop bracket, and
// a controller that coordinates user input, the transcribe/chat/synthesize
// endpoints, the conversation transcript, and speech playback with local
// fallback.
package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// State is the controller's interaction phase. All mutation goes through
// transition, so the no-overlap invariant between recording and sending is
// enforced structurally rather than by convention.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
	StateSending
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateSending:
		return "sending"
	default:
		return "idle"
	}
}

// UI receives everything the controller wants shown. Implementations must be
// cheap; the controller calls them inline.
type UI interface {
	AppendEntry(e Entry)
	ShowThinking()
	HideThinking()
	// Notify shows a dismissible non-blocking notification (mid-flow errors).
	Notify(msg string)
	// Alert shows a blocking message (capture-layer failures).
	Alert(msg string)
	ShowRecommendations(recs []string)
	SetReplayEnabled(enabled bool)
	StateChanged(s State)
}

const (
	msgPermissionDenied   = "Microphone access was denied. Allow microphone access to use voice input."
	msgUnsupportedDevice  = "Voice input is not supported on this device."
	msgRecordingFailed    = "Could not start recording. Please try again."
	msgTranscribeFailed   = "Sorry, I couldn't understand the recording. Please try again."
	msgChatFailed         = "Sorry, I'm having trouble responding right now. Please try again."
	defaultSpeakDelay     = 500 * time.Millisecond
	defaultRequestTimeout = 60 * time.Second
)

// Controller drives one user-facing exchange cycle at a time. All
// collaborators are injected; nothing in this package holds global state.
type Controller struct {
	recorder   *Recorder
	backend    Backend
	ui         UI
	strategies []PlaybackStrategy
	logger     *slog.Logger
	sessionID  string
	speakDelay time.Duration
	sleep      func(d time.Duration)

	mu         sync.Mutex
	state      State
	transcript []Entry
	lastReply  string
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithSpeakDelay overrides the pause before voice replies are spoken.
func WithSpeakDelay(d time.Duration) Option {
	return func(c *Controller) { c.speakDelay = d }
}

// WithSleep replaces the delay function (tests use an instant sleep).
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Controller) { c.sleep = fn }
}

// NewController wires a controller for one study session. strategies are
// tried in order whenever assistant text is spoken.
func NewController(sessionID string, recorder *Recorder, backend Backend, ui UI, strategies []PlaybackStrategy, opts ...Option) *Controller {
	c := &Controller{
		recorder:   recorder,
		backend:    backend,
		ui:         ui,
		strategies: strategies,
		logger:     slog.Default(),
		sessionID:  sessionID,
		speakDelay: defaultSpeakDelay,
		sleep:      time.Sleep,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the current interaction phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns a copy of the conversation log.
func (c *Controller) Transcript() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// LastReply returns the most recent assistant text, or "".
func (c *Controller) LastReply() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReply
}

// transition is the single mutation point for the state machine. It moves
// from→to atomically and reports whether the move happened.
func (c *Controller) transition(from, to State) bool {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.mu.Unlock()
	c.ui.StateChanged(to)
	return true
}

func (c *Controller) append(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	c.mu.Lock()
	c.transcript = append(c.transcript, e)
	c.mu.Unlock()
	c.ui.AppendEntry(e)
}

// ToggleRecording starts a recording bracket when idle and finishes one when
// recording. Activation is refused while a send or transcription is in
// flight.
func (c *Controller) ToggleRecording(ctx context.Context) {
	if c.transition(StateRecording, StateProcessing) {
		c.finishRecording(ctx)
		return
	}
	if !c.transition(StateIdle, StateRecording) {
		return
	}
	if err := c.recorder.Start(); err != nil {
		c.transition(StateRecording, StateIdle)
		c.alertCaptureError(err)
	}
}

func (c *Controller) alertCaptureError(err error) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		c.ui.Alert(msgPermissionDenied)
	case errors.Is(err, ErrUnsupportedDevice):
		c.ui.Alert(msgUnsupportedDevice)
	default:
		c.logger.Error("capture failed", "error", err)
		c.ui.Alert(msgRecordingFailed)
	}
}

// finishRecording runs the voice flow: stop → transcribe → hand off to send.
// The controller is in StateProcessing on entry and must be back in StateIdle
// on every exit path before send re-enters StateSending.
func (c *Controller) finishRecording(ctx context.Context) {
	clip, err := c.recorder.Stop()
	if err != nil {
		c.transition(StateProcessing, StateIdle)
		c.logger.Error("stop recording failed", "error", err)
		c.ui.Notify(msgTranscribeFailed)
		return
	}

	res, err := c.backend.Transcribe(ctx, clip)
	if err != nil {
		c.transition(StateProcessing, StateIdle)
		c.logger.Error("transcription request failed", "error", err)
		c.ui.Notify(msgTranscribeFailed)
		return
	}

	text := ""
	if res != nil {
		text = strings.TrimSpace(res.Text)
	}
	if res == nil || !res.Success || text == "" {
		c.transition(StateProcessing, StateIdle)
		msg := msgTranscribeFailed
		if res != nil && res.Error != "" {
			msg = res.Error
		}
		c.ui.Notify(msg)
		return
	}

	// The voice path appends the user entry here; send skips its own append
	// for MethodVoice so the entry appears exactly once.
	c.append(Entry{Text: text, Sender: SenderUser, Method: MethodVoice})
	c.transition(StateProcessing, StateIdle)
	c.send(ctx, text, MethodVoice, clip.Duration.Seconds())
}

// SendText submits typed input. A no-op when another send is in flight.
func (c *Controller) SendText(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	c.send(ctx, text, MethodText, 0)
}

// send is shared by the voice and text flows. The idle→sending transition is
// the re-entry guard: rapid double submissions and a voice flow racing a
// manual send collapse to a single network request.
func (c *Controller) send(ctx context.Context, text string, method InputMethod, audioDuration float64) {
	if !c.transition(StateIdle, StateSending) {
		return
	}
	defer c.transition(StateSending, StateIdle)

	if method == MethodText {
		c.append(Entry{Text: text, Sender: SenderUser, Method: method})
	}

	c.ui.ShowThinking()
	defer c.ui.HideThinking()

	res, err := c.backend.Chat(ctx, ChatRequest{
		Message:       text,
		SessionID:     c.sessionID,
		InputMethod:   method,
		AudioDuration: audioDuration,
	})
	if err != nil {
		c.logger.Error("chat request failed", "error", err)
		c.append(Entry{Text: msgChatFailed, Sender: SenderAssistant, Method: method, Err: true})
		c.ui.Notify(msgChatFailed)
		return
	}

	if !res.Success {
		fallback := res.FallbackResponse
		if fallback == "" {
			fallback = msgChatFailed
		}
		c.append(Entry{Text: fallback, Sender: SenderAssistant, Method: method, Err: true})
		if res.Error != "" {
			c.ui.Notify(res.Error)
		}
		return
	}

	c.append(Entry{Text: res.Response, Sender: SenderAssistant, Method: method})
	c.mu.Lock()
	c.lastReply = res.Response
	c.mu.Unlock()
	c.ui.ShowRecommendations(res.Recommendations)
	c.ui.SetReplayEnabled(true)

	if method == MethodVoice {
		c.sleep(c.speakDelay)
		c.Speak(ctx, res.Response)
	}
}

// Speak voices text through the playback strategies in order. Failures are
// absorbed: audio degrades to the next strategy or, when all are exhausted,
// to silence.
func (c *Controller) Speak(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	for _, s := range c.strategies {
		if err := s.Play(ctx, text); err != nil {
			c.logger.Warn("playback strategy failed", "strategy", s.Name(), "error", err)
			continue
		}
		return
	}
	c.logger.Warn("no playback strategy succeeded; reply not spoken")
}

// ReplayLast re-voices the most recent assistant reply, if any.
func (c *Controller) ReplayLast(ctx context.Context) {
	c.Speak(ctx, c.LastReply())
}

// Close releases the recorder's hardware resources.
func (c *Controller) Close() error {
	return c.recorder.Close()
}
