package llm

import (
	"context"
	"fmt"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message sent to the inference service.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserText builds a user-role message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// Request is one streaming chat request.
type Request struct {
	// Model overrides the provider's configured model when non-empty.
	Model    string
	Messages []Message
}

// EventType identifies the kind of a stream event.
type EventType string

const (
	EventTextDelta EventType = "text_delta"
	EventError     EventType = "error"
	EventDone      EventType = "done"
)

// Event is one item produced by a provider stream.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Stream yields provider events until Recv returns io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Provider is an inference service reachable by a streaming chat call.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// ModelInfo describes a model advertised by the inference service.
type ModelInfo struct {
	ID      string `json:"id"`
	// Details is a short description such as parameter count and
	// quantization, when the service reports one.
	Details string `json:"details,omitempty"`
	Size    int64  `json:"size,omitempty"`
	Created int64  `json:"created,omitempty"`
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// StatusError is returned when the inference service answers with a
// non-success HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("inference service returned status %d: %s", e.StatusCode, e.Body)
}
