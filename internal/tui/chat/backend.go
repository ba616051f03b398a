package chat

import (
	"context"

	"github.com/cmuxiao/deepchat/internal/panel"
)

// StreamBackend abstracts the in-process bridge vs a remote deepchat serve.
type StreamBackend interface {
	// Send forwards a chat message. The returned channel carries every
	// reply for msg.ID in order and is closed after the terminal one.
	Send(ctx context.Context, msg panel.Message) (<-chan panel.Message, error)
	// Cancel aborts the request with the given id.
	Cancel(id string)
	Close() error
}
