package websocket

import (
	"encoding/json"

	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

// Inbound command types.
const (
	CommandPrompt   = "prompt"
	CommandDecision = "decision"
	CommandStop     = "stop"
	CommandReset    = "reset"
	CommandOptions  = "options"
)

// Outbound frame types.
const (
	FrameSession    = "session"
	FrameState      = "state"
	FrameStatus     = "status"
	FrameStream     = "stream"
	FrameTopicShift = "topic_shift"
	FrameNotice     = "notice"
	FrameError      = "error"
	FrameThread     = "thread"
)

// Topic shift decisions.
const (
	ChoiceNew      = "new"
	ChoiceContinue = "continue"
	ChoiceDismiss  = "dismiss"
)

// Command is a client -> server message.
type Command struct {
	Type    string                     `json:"type"`
	Prompt  string                     `json:"prompt,omitempty"`
	Stream  bool                       `json:"stream,omitempty"`
	Choice  string                     `json:"choice,omitempty"`
	Options *mindmap.GenerationOptions `json:"options,omitempty"`
}

// Frame is a server -> client message.
type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type SessionData struct {
	SessionID string `json:"sessionId"`
	Resumed   bool   `json:"resumed"`
}

type TopicShiftData struct {
	Prompt string `json:"prompt"`
	Reason string `json:"reason"`
}

type ErrorData struct {
	Message string                   `json:"message"`
	Errors  []serverutils.FieldError `json:"errors,omitempty"`
}

// ThreadData mirrors a thread lifecycle event for the owner's other sockets.
type ThreadData struct {
	Event    string `json:"event"`
	ThreadID string `json:"threadId"`
	Title    string `json:"title,omitempty"`
}

func encodeFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

func errorFrame(message string) Frame {
	return Frame{Type: FrameError, Data: ErrorData{Message: message}}
}
