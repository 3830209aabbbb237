package client

import "time"

// Sender identifies who authored a transcript entry.
type Sender int

const (
	SenderUser Sender = iota
	SenderAssistant
)

func (s Sender) String() string {
	if s == SenderAssistant {
		return "assistant"
	}
	return "user"
}

// InputMethod records how a message entered the conversation. It is threaded
// through every call site as a typed value; the voice path is the only one
// that suppresses the duplicate user-entry append in send.
type InputMethod int

const (
	MethodText InputMethod = iota
	MethodVoice
)

func (m InputMethod) String() string {
	if m == MethodVoice {
		return "voice"
	}
	return "text"
}

// Entry is one row of the conversation transcript. The transcript is
// append-only; rendering order is arrival order.
type Entry struct {
	Text   string
	Sender Sender
	Method InputMethod
	Err    bool
	At     time.Time
}
