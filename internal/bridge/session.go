package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrBusy is returned when a session already runs its maximum number
	// of relays.
	ErrBusy = errors.New("a request is already in progress")
	// ErrDuplicateID is returned when a request id is already in flight.
	ErrDuplicateID = errors.New("request id already in flight")
)

// NewID returns a fresh correlation id.
func NewID() string {
	return uuid.NewString()
}

// Session runs relays on behalf of one panel and tracks them by
// correlation id so they can be cancelled.
type Session struct {
	bridge      *Bridge
	maxInFlight int

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a session allowing maxInFlight concurrent relays.
// Values below one mean one.
func (b *Bridge) NewSession(maxInFlight int) *Session {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Session{
		bridge:      b,
		maxInFlight: maxInFlight,
		active:      make(map[string]context.CancelFunc),
	}
}

// Start launches a relay in the background and returns its id, generating
// one when req.ID is empty. The request is released before its terminal
// update is emitted, so a panel may submit again as soon as it sees it.
func (s *Session) Start(ctx context.Context, req Request, emit Emitter) (string, error) {
	if req.ID == "" {
		req.ID = NewID()
	}
	if emit == nil {
		emit = func(Update) {}
	}

	s.mu.Lock()
	if _, exists := s.active[req.ID]; exists {
		s.mu.Unlock()
		return req.ID, ErrDuplicateID
	}
	if len(s.active) >= s.maxInFlight {
		s.mu.Unlock()
		return req.ID, ErrBusy
	}
	relayCtx, cancel := context.WithCancel(ctx)
	s.active[req.ID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.release(req.ID)
		_, _ = s.bridge.Relay(relayCtx, req, func(u Update) {
			if u.Terminal() {
				s.release(req.ID)
			}
			emit(u)
		})
	}()
	return req.ID, nil
}

// release forgets id and cancels its context. Safe to call twice.
func (s *Session) release(id string) {
	s.mu.Lock()
	cancel, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Cancel stops the relay with the given id. It reports whether the id was
// in flight.
func (s *Session) Cancel(id string) bool {
	s.mu.Lock()
	cancel, ok := s.active[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// CancelAll stops every relay of the session.
func (s *Session) CancelAll() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.active))
	for _, cancel := range s.active {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Active returns the number of relays in flight.
func (s *Session) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Wait blocks until every started relay has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}
