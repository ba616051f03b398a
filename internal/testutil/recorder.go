package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/cmuxiao/deepchat/internal/bridge"
)

// Recorder captures bridge updates from any goroutine.
type Recorder struct {
	mu      sync.Mutex
	updates []bridge.Update
	notify  chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Emit records u. It satisfies bridge.Emitter.
func (r *Recorder) Emit(u bridge.Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Updates returns a copy of everything recorded so far.
func (r *Recorder) Updates() []bridge.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bridge.Update, len(r.updates))
	copy(out, r.updates)
	return out
}

// For returns the updates recorded for one request id.
func (r *Recorder) For(id string) []bridge.Update {
	var out []bridge.Update
	for _, u := range r.Updates() {
		if u.ID == id {
			out = append(out, u)
		}
	}
	return out
}

// terminal returns the terminal update for id, if one was recorded.
func (r *Recorder) terminal(id string) (bridge.Update, bool) {
	for _, u := range r.For(id) {
		if u.Terminal() {
			return u, true
		}
	}
	return bridge.Update{}, false
}

// WaitTerminal blocks until the terminal update for id arrives and returns
// it, failing the test after timeout.
func (r *Recorder) WaitTerminal(t *testing.T, id string, timeout time.Duration) bridge.Update {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if u, ok := r.terminal(id); ok {
			return u
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			t.Fatalf("no terminal update for %q after %s; got %+v", id, timeout, r.For(id))
			return bridge.Update{}
		}
	}
}

// WaitCount blocks until at least n updates are recorded for id.
func (r *Recorder) WaitCount(t *testing.T, id string, n int, timeout time.Duration) []bridge.Update {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if got := r.For(id); len(got) >= n {
			return got
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			t.Fatalf("want %d updates for %q after %s; got %+v", n, id, timeout, r.For(id))
			return nil
		}
	}
}
