package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/cmuxiao/deepchat/internal/bridge"
	"github.com/cmuxiao/deepchat/internal/panel"
	servechat "github.com/cmuxiao/deepchat/internal/serve/chat"
	"github.com/gorilla/websocket"
)

// RemoteBackend connects to a deepchat panel server via WebSocket.
// Implements StreamBackend.
type RemoteBackend struct {
	url  string
	conn *websocket.Conn

	sendCh chan servechat.ClientEvent

	mu      sync.Mutex
	streams map[string]chan panel.Message
	err     error

	closed    chan struct{}
	closeOnce sync.Once
}

// NewRemoteBackend opens the WebSocket connection to urlStr.
func NewRemoteBackend(ctx context.Context, urlStr, token string) (*RemoteBackend, error) {
	wsURL, err := normalizeWSURL(urlStr)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	if strings.TrimSpace(token) != "" {
		headers.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("connect %s: unauthorized (check --token)", wsURL)
		}
		return nil, fmt.Errorf("connect %s: %w", wsURL, err)
	}

	backend := &RemoteBackend{
		url:     wsURL,
		conn:    conn,
		sendCh:  make(chan servechat.ClientEvent, 32),
		streams: make(map[string]chan panel.Message),
		closed:  make(chan struct{}),
	}

	go backend.writeLoop()
	go backend.readLoop()

	return backend, nil
}

// Send forwards msg to the server and returns the channel of its replies.
func (r *RemoteBackend) Send(ctx context.Context, msg panel.Message) (<-chan panel.Message, error) {
	if r == nil {
		return nil, errors.New("remote backend is nil")
	}
	ch := make(chan panel.Message, replyBuffer)
	r.mu.Lock()
	if r.err != nil {
		err := r.err
		r.mu.Unlock()
		return nil, err
	}
	r.streams[msg.ID] = ch
	r.mu.Unlock()

	if err := r.enqueue(ctx, msg); err != nil {
		r.mu.Lock()
		delete(r.streams, msg.ID)
		r.mu.Unlock()
		return nil, err
	}
	return ch, nil
}

// Cancel asks the server to abort the request with the given id.
func (r *RemoteBackend) Cancel(id string) {
	if r == nil {
		return
	}
	_ = r.enqueue(context.Background(), servechat.ClientEvent{Command: panel.CommandCancel, ID: id})
}

// Close drops the connection. Pending requests end with an error reply.
func (r *RemoteBackend) Close() error {
	if r == nil {
		return nil
	}
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		err = r.conn.Close()
	})
	return err
}

func (r *RemoteBackend) enqueue(ctx context.Context, ev servechat.ClientEvent) error {
	select {
	case r.sendCh <- ev:
		return nil
	case <-r.closed:
		return errors.New("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RemoteBackend) writeLoop() {
	for {
		select {
		case ev := <-r.sendCh:
			if err := r.conn.WriteJSON(ev); err != nil {
				// readLoop sees the closed socket and fails pending streams.
				_ = r.conn.Close()
				return
			}
		case <-r.closed:
			return
		}
	}
}

func (r *RemoteBackend) readLoop() {
	for {
		var ev servechat.WireEvent
		if err := r.conn.ReadJSON(&ev); err != nil {
			r.fail(err)
			return
		}
		r.handleWireEvent(ev)
	}
}

// handleWireEvent routes a server message to the stream of its request id.
func (r *RemoteBackend) handleWireEvent(ev servechat.WireEvent) {
	r.mu.Lock()
	ch := r.streams[ev.ID]
	if ch != nil && ev.Terminal() {
		delete(r.streams, ev.ID)
	}
	r.mu.Unlock()
	if ch == nil {
		return
	}

	select {
	case ch <- ev:
	case <-r.closed:
	}
	if ev.Terminal() {
		close(ch)
	}
}

// fail ends every pending request with an error reply and marks the backend
// unusable. Only readLoop calls it, so no stream is closed mid-send.
func (r *RemoteBackend) fail(err error) {
	select {
	case <-r.closed:
		err = errors.New("connection closed")
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = errors.New("server closed the connection")
	}

	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	streams := r.streams
	r.streams = make(map[string]chan panel.Message)
	r.mu.Unlock()

	for id, ch := range streams {
		select {
		case ch <- panel.Failed(id, bridge.ErrorPrefix+"connection lost: "+err.Error()):
		default:
		}
		close(ch)
	}
	_ = r.Close()
}

func normalizeWSURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", errors.New("remote URL is required")
	}
	if !strings.HasPrefix(value, "ws://") && !strings.HasPrefix(value, "wss://") && !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		value = "ws://" + value
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	if !strings.HasSuffix(parsed.Path, servechat.WSPath) {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/") + servechat.WSPath
	}
	return parsed.String(), nil
}
