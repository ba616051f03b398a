package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockTurn scripts the response to a single Stream call.
type MockTurn struct {
	Fragments []string      // emitted in order as text deltas
	Delay     time.Duration // wait before each fragment
	Error     error         // emitted after Fragments instead of EventDone
	SetupErr  error         // returned from Stream itself
	Hold      bool          // after Fragments, block until the context is cancelled
}

// MockProvider is a configurable provider for testing.
// It returns scripted responses and records all requests for verification.
type MockProvider struct {
	name      string
	turns     []MockTurn
	turnIndex int
	Requests  []Request
	mu        sync.Mutex
}

// NewMockProvider creates a new mock provider with the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (m *MockProvider) Name() string {
	return m.name
}

// AddTurn adds a response turn and returns the provider for chaining.
func (m *MockProvider) AddTurn(t MockTurn) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

// AddFragments adds a turn that streams the given fragments and ends.
func (m *MockProvider) AddFragments(fragments ...string) *MockProvider {
	return m.AddTurn(MockTurn{Fragments: fragments})
}

// AddError adds a turn that fails after streaming the given fragments.
func (m *MockProvider) AddError(err error, fragments ...string) *MockProvider {
	return m.AddTurn(MockTurn{Fragments: fragments, Error: err})
}

// RequestCount returns how many Stream calls were recorded.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequest returns the most recent recorded request.
func (m *MockProvider) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return Request{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

func (m *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)

	if m.turnIndex >= len(m.turns) {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock provider: no more turns configured (expected turn %d, have %d)", m.turnIndex, len(m.turns))
	}
	turn := m.turns[m.turnIndex]
	m.turnIndex++
	m.mu.Unlock()

	if turn.SetupErr != nil {
		return nil, turn.SetupErr
	}

	return newEventStream(ctx, func(ctx context.Context, ch chan<- Event) error {
		for _, fragment := range turn.Fragments {
			if turn.Delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(turn.Delay):
				}
			}
			if err := send(ctx, ch, Event{Type: EventTextDelta, Text: fragment}); err != nil {
				return err
			}
		}
		if turn.Hold {
			<-ctx.Done()
			return ctx.Err()
		}
		if turn.Error != nil {
			return turn.Error
		}
		return send(ctx, ch, Event{Type: EventDone})
	}), nil
}
