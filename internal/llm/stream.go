package llm

import (
	"context"
	"io"
	"sync"
)

// eventStream adapts a producer goroutine to the Stream interface.
type eventStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	events <-chan Event
	// exited is closed once the producer has returned and events is closed.
	exited chan struct{}

	closeOnce sync.Once
}

// newEventStream runs produce in its own goroutine. Events it sends are
// handed out by Recv in order; a non-nil return value becomes a final
// EventError. The producer must stop sending once its context is done.
func newEventStream(ctx context.Context, produce func(context.Context, chan<- Event) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, 16)
	s := &eventStream{ctx: streamCtx, cancel: cancel, events: events, exited: make(chan struct{})}

	go func() {
		defer close(s.exited)
		defer close(events)
		if err := produce(streamCtx, events); err != nil {
			_ = send(streamCtx, events, Event{Type: EventError, Err: err})
		}
	}()
	return s
}

// Recv returns the next event, io.EOF after the producer finished, or the
// context error once the stream is cancelled. Buffered events win over
// cancellation so a trailing EventDone is not lost.
func (s *eventStream) Recv() (Event, error) {
	select {
	case ev, ok := <-s.events:
		return s.received(ev, ok)
	default:
	}
	select {
	case ev, ok := <-s.events:
		return s.received(ev, ok)
	case <-s.ctx.Done():
		return Event{}, s.ctx.Err()
	}
}

func (s *eventStream) received(ev Event, ok bool) (Event, error) {
	if !ok {
		return Event{}, io.EOF
	}
	return ev, nil
}

// Close cancels the producer and waits for it to return.
func (s *eventStream) Close() error {
	s.closeOnce.Do(s.cancel)
	<-s.exited
	return nil
}

// send delivers ev unless ctx is cancelled first.
func send(ctx context.Context, ch chan<- Event, ev Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ch <- ev:
		return nil
	}
}
