package llm

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cmuxiao/deepchat/internal/config"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		wantName string
		wantErr  bool
	}{
		{name: "ollama", provider: config.ProviderOllama, wantName: "Ollama (deepseek-r1:7b)"},
		{name: "openai compat", provider: config.ProviderOpenAICompat, wantName: "OpenAI-compatible (deepseek-r1:7b)"},
		{name: "unknown", provider: "gemini", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Provider = tc.provider
			p, err := NewProvider(cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tc.wantName {
				t.Fatalf("name=%q, want %q", p.Name(), tc.wantName)
			}
			if _, ok := p.(ModelLister); !ok {
				t.Fatalf("%T should list models", p)
			}
		})
	}
}

func TestMockProviderScriptedTurns(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockProvider("mock").
		AddFragments("a", "b").
		AddError(boom, "c")

	s, err := m.Stream(context.Background(), Request{Messages: []Message{UserText("one")}})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	deltas, err := collect(t, s)
	if err != nil || len(deltas) != 2 {
		t.Fatalf("first turn deltas=%q err=%v", deltas, err)
	}

	s, err = m.Stream(context.Background(), Request{Messages: []Message{UserText("two")}})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	deltas, err = collect(t, s)
	if !errors.Is(err, boom) || len(deltas) != 1 {
		t.Fatalf("second turn deltas=%q err=%v, want [c] and boom", deltas, err)
	}

	if _, err := m.Stream(context.Background(), Request{}); err == nil {
		t.Fatal("expected error once turns are exhausted")
	}
	if m.RequestCount() != 3 {
		t.Fatalf("recorded %d requests, want 3", m.RequestCount())
	}
	last, _ := m.LastRequest()
	if len(last.Messages) != 0 {
		t.Fatalf("last request=%+v, want the empty one", last)
	}
}

func TestEventStreamEndsWithEOF(t *testing.T) {
	s := newEventStream(context.Background(), func(ctx context.Context, ch chan<- Event) error {
		return send(ctx, ch, Event{Type: EventDone})
	})
	ev, err := s.Recv()
	if err != nil || ev.Type != EventDone {
		t.Fatalf("Recv() = %+v, %v; want done", ev, err)
	}
	if _, err := s.Recv(); err != io.EOF {
		t.Fatalf("Recv() err=%v, want io.EOF", err)
	}
}

func TestEventStreamCloseWaitsForProducer(t *testing.T) {
	exited := make(chan struct{})
	s := newEventStream(context.Background(), func(ctx context.Context, ch chan<- Event) error {
		defer close(exited)
		if err := send(ctx, ch, Event{Type: EventTextDelta, Text: "a"}); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})
	if ev, err := s.Recv(); err != nil || ev.Text != "a" {
		t.Fatalf("Recv() = %+v, %v; want the first delta", ev, err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case <-exited:
	default:
		t.Fatal("Close returned before the producer exited")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := s.Recv(); err == nil {
		t.Fatal("Recv() after Close should fail")
	}
}

func TestEventStreamProducerError(t *testing.T) {
	boom := errors.New("boom")
	s := newEventStream(context.Background(), func(ctx context.Context, ch chan<- Event) error {
		return boom
	})
	defer s.Close()
	ev, err := s.Recv()
	if err != nil || ev.Type != EventError || !errors.Is(ev.Err, boom) {
		t.Fatalf("Recv() = %+v, %v; want the producer error", ev, err)
	}
	if _, err := s.Recv(); err != io.EOF {
		t.Fatalf("Recv() err=%v, want io.EOF", err)
	}
}
