package bridge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmuxiao/deepchat/internal/bridge"
	"github.com/cmuxiao/deepchat/internal/llm"
	"github.com/cmuxiao/deepchat/internal/testutil"
)

func TestSessionAssignsID(t *testing.T) {
	p := llm.NewMockProvider("mock").AddFragments("ok")
	s := bridge.New(p).NewSession(1)
	rec := testutil.NewRecorder()

	id, err := s.Start(context.Background(), bridge.Request{Prompt: "hi"}, rec.Emit)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}
	last := rec.WaitTerminal(t, id, time.Second)
	if last.Kind != bridge.KindDone || last.Text != "ok" {
		t.Fatalf("terminal=%+v", last)
	}
	s.Wait()
	if s.Active() != 0 {
		t.Fatalf("Active()=%d after completion, want 0", s.Active())
	}
}

func TestSessionRejectsSecondRequest(t *testing.T) {
	p := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{Hold: true})
	s := bridge.New(p).NewSession(1)
	rec := testutil.NewRecorder()
	defer s.Wait()
	defer s.CancelAll()

	if _, err := s.Start(context.Background(), bridge.Request{ID: "a", Prompt: "one"}, rec.Emit); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if _, err := s.Start(context.Background(), bridge.Request{ID: "b", Prompt: "two"}, rec.Emit); !errors.Is(err, bridge.ErrBusy) {
		t.Fatalf("second Start() err=%v, want ErrBusy", err)
	}
	if p.RequestCount() > 1 {
		t.Fatalf("provider saw %d requests, want at most 1", p.RequestCount())
	}
}

func TestSessionRejectsDuplicateID(t *testing.T) {
	p := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{Hold: true})
	s := bridge.New(p).NewSession(2)
	defer s.Wait()
	defer s.CancelAll()

	if _, err := s.Start(context.Background(), bridge.Request{ID: "same", Prompt: "one"}, nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := s.Start(context.Background(), bridge.Request{ID: "same", Prompt: "two"}, nil); !errors.Is(err, bridge.ErrDuplicateID) {
		t.Fatalf("err=%v, want ErrDuplicateID", err)
	}
}

func TestSessionCancelByID(t *testing.T) {
	p := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{Fragments: []string{"par"}, Hold: true})
	s := bridge.New(p).NewSession(1)
	rec := testutil.NewRecorder()

	id, err := s.Start(context.Background(), bridge.Request{ID: "c1", Prompt: "go"}, rec.Emit)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	rec.WaitCount(t, id, 1, time.Second)

	if s.Cancel("unknown") {
		t.Fatal("Cancel(unknown) reported true")
	}
	if !s.Cancel(id) {
		t.Fatal("Cancel(id) reported false for an in-flight request")
	}
	last := rec.WaitTerminal(t, id, time.Second)
	if !last.Cancelled || last.Text != "par" {
		t.Fatalf("terminal=%+v, want cancelled with partial text", last)
	}
	s.Wait()
}

func TestSessionFreeBeforeTerminalUpdate(t *testing.T) {
	p := llm.NewMockProvider("mock").AddFragments("first").AddFragments("second")
	s := bridge.New(p).NewSession(1)
	rec := testutil.NewRecorder()

	activeAtDone := -1
	emit := func(u bridge.Update) {
		if u.Terminal() {
			activeAtDone = s.Active()
		}
		rec.Emit(u)
	}
	if _, err := s.Start(context.Background(), bridge.Request{ID: "1", Prompt: "a"}, emit); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	rec.WaitTerminal(t, "1", time.Second)
	if activeAtDone != 0 {
		t.Fatalf("Active()=%d while emitting done, want 0", activeAtDone)
	}

	if _, err := s.Start(context.Background(), bridge.Request{ID: "2", Prompt: "b"}, rec.Emit); err != nil {
		t.Fatalf("Start() right after done = %v, want accepted", err)
	}
	if last := rec.WaitTerminal(t, "2", time.Second); last.Text != "second" {
		t.Fatalf("terminal=%+v", last)
	}
	s.Wait()
}

func TestSessionCancelAll(t *testing.T) {
	p := llm.NewMockProvider("mock").
		AddTurn(llm.MockTurn{Hold: true}).
		AddTurn(llm.MockTurn{Hold: true})
	s := bridge.New(p).NewSession(2)
	rec := testutil.NewRecorder()

	for _, id := range []string{"x", "y"} {
		if _, err := s.Start(context.Background(), bridge.Request{ID: id, Prompt: id}, rec.Emit); err != nil {
			t.Fatalf("Start(%s) error = %v", id, err)
		}
	}
	s.CancelAll()
	for _, id := range []string{"x", "y"} {
		if last := rec.WaitTerminal(t, id, time.Second); !last.Cancelled {
			t.Fatalf("terminal for %s=%+v, want cancelled", id, last)
		}
	}
	s.Wait()
	if s.Active() != 0 {
		t.Fatalf("Active()=%d, want 0", s.Active())
	}
}
