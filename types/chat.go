package types

// ChatRequest is the body of POST /chat and of inbound websocket messages.
type ChatRequest struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

type EventType string

const (
	EventContent EventType = "content"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// StreamEvent is one unit of the chat response protocol. A stream carries zero
// or more content events followed by exactly one done or error event.
type StreamEvent struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
}

func ContentEvent(text string) StreamEvent {
	return StreamEvent{Type: EventContent, Content: text}
}

func DoneEvent() StreamEvent {
	return StreamEvent{Type: EventDone}
}

func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Content: message}
}

// IsTerminal reports whether the event ends a stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
