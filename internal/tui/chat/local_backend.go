package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/cmuxiao/deepchat/internal/bridge"
	"github.com/cmuxiao/deepchat/internal/panel"
	servechat "github.com/cmuxiao/deepchat/internal/serve/chat"
)

// replyBuffer bounds the replies queued for a TUI that is busy rendering.
const replyBuffer = 64

// LocalBackend runs relays in-process on a bridge session.
type LocalBackend struct {
	session   *bridge.Session
	closed    chan struct{}
	closeOnce sync.Once
}

// NewLocalBackend creates a LocalBackend allowing one request at a time.
func NewLocalBackend(b *bridge.Bridge) *LocalBackend {
	return &LocalBackend{session: b.NewSession(1), closed: make(chan struct{})}
}

// Send starts a relay for msg. A refused request yields a single error reply.
func (b *LocalBackend) Send(ctx context.Context, msg panel.Message) (<-chan panel.Message, error) {
	if b == nil || b.session == nil {
		return nil, errors.New("local backend not configured")
	}
	ch := make(chan panel.Message, replyBuffer)
	_, err := b.session.Start(ctx, bridge.Request{ID: msg.ID, Prompt: msg.Text}, func(u bridge.Update) {
		select {
		case ch <- servechat.ToWireEvent(u):
		case <-b.closed:
		}
		if u.Terminal() {
			close(ch)
		}
	})
	if err != nil {
		ch <- panel.Failed(msg.ID, bridge.ErrorPrefix+err.Error())
		close(ch)
	}
	return ch, nil
}

// Cancel stops the relay with the given id.
func (b *LocalBackend) Cancel(id string) {
	if b == nil || b.session == nil {
		return
	}
	b.session.Cancel(id)
}

// Close cancels any running relay and waits for it. Replies nobody reads
// any more are dropped.
func (b *LocalBackend) Close() error {
	if b == nil || b.session == nil {
		return nil
	}
	b.closeOnce.Do(func() { close(b.closed) })
	b.session.CancelAll()
	b.session.Wait()
	return nil
}
