package panel

import (
	"fmt"
	"strings"
	"testing"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("req-%d", n)
	}
}

func TestSubmitCreatesTwoTurns(t *testing.T) {
	p := New(WithIDGenerator(sequentialIDs()))

	msg, ok := p.Submit("  Hello \n")
	if !ok {
		t.Fatal("Submit() refused non-empty input")
	}
	if msg != (Message{Command: CommandChat, ID: "req-1", Text: "Hello"}) {
		t.Fatalf("msg=%+v", msg)
	}

	turns := p.Turns()
	want := []Turn{{Role: RoleUser, Text: "Hello"}, {Role: RoleBot, Text: Placeholder}}
	if len(turns) != len(want) || turns[0] != want[0] || turns[1] != want[1] {
		t.Fatalf("turns=%+v, want %+v", turns, want)
	}
	if !p.Busy() || p.SendEnabled() || p.State() != StateAwaiting {
		t.Fatalf("busy=%v sendEnabled=%v state=%s after submit", p.Busy(), p.SendEnabled(), p.State())
	}
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	for _, input := range []string{"", " ", "\n\t  \n"} {
		p := New()
		if _, ok := p.Submit(input); ok {
			t.Fatalf("Submit(%q) accepted blank input", input)
		}
		if len(p.Turns()) != 0 || p.Busy() {
			t.Fatalf("Submit(%q) changed the panel: turns=%+v busy=%v", input, p.Turns(), p.Busy())
		}
	}
}

func TestSubmitRefusedWhileAwaiting(t *testing.T) {
	p := New()
	if _, ok := p.Submit("one"); !ok {
		t.Fatal("first Submit() refused")
	}
	if _, ok := p.Submit("two"); ok {
		t.Fatal("second Submit() accepted while awaiting")
	}
	if len(p.Turns()) != 2 {
		t.Fatalf("got %d turns, want 2", len(p.Turns()))
	}
}

func TestHelloScenario(t *testing.T) {
	p := New(WithIDGenerator(sequentialIDs()))
	msg, _ := p.Submit("Hello")

	for _, text := range []string{"Hi", "Hi there"} {
		eff := p.Apply(Message{Command: CommandChatResponse, ID: msg.ID, Text: text})
		if !eff.Changed || !eff.ScrollToBottom || eff.Finished {
			t.Fatalf("Apply(%q) effect=%+v", text, eff)
		}
		if got := p.Turns()[1].Text; got != text {
			t.Fatalf("bot text=%q, want %q", got, text)
		}
		if !p.Busy() {
			t.Fatal("panel went idle on an incremental update")
		}
	}

	eff := p.Apply(Done(msg.ID, "Hi there", false))
	if !eff.Finished {
		t.Fatalf("done effect=%+v, want finished", eff)
	}
	if p.Busy() || !p.SendEnabled() || p.PendingID() != "" {
		t.Fatalf("busy=%v sendEnabled=%v pending=%q after done", p.Busy(), p.SendEnabled(), p.PendingID())
	}
	if got := p.Turns()[1].Text; got != "Hi there" {
		t.Fatalf("final bot text=%q, want %q", got, "Hi there")
	}
}

func TestErrorReplacesPartialText(t *testing.T) {
	p := New()
	msg, _ := p.Submit("Hello")
	p.Apply(Message{Command: CommandChatResponse, ID: msg.ID, Text: "partial"})

	eff := p.Apply(Failed(msg.ID, "Error: connection refused"))
	if !eff.Finished {
		t.Fatalf("error effect=%+v, want finished", eff)
	}
	turns := p.Turns()
	if len(turns) != 2 || turns[1].Text != "Error: connection refused" {
		t.Fatalf("turns=%+v", turns)
	}
	if !p.SendEnabled() {
		t.Fatal("send stays disabled after error")
	}
}

func TestApplyIgnoresForeignID(t *testing.T) {
	p := New(WithIDGenerator(sequentialIDs()))
	msg, _ := p.Submit("Hello")

	if eff := p.Apply(Done("someone-else", "nope", false)); eff.Changed {
		t.Fatalf("foreign message changed the panel: %+v", eff)
	}
	if !p.Busy() || p.Turns()[1].Text != Placeholder {
		t.Fatalf("panel state changed by foreign id: busy=%v turns=%+v", p.Busy(), p.Turns())
	}

	p.Apply(Done(msg.ID, "ok", false))
	if eff := p.Apply(Message{Command: CommandChatResponse, ID: msg.ID, Text: "late"}); eff.Changed {
		t.Fatal("late update after done changed the panel")
	}
	if p.Turns()[1].Text != "ok" {
		t.Fatalf("bot text=%q, want ok", p.Turns()[1].Text)
	}
}

func TestRepliesUseOneCommand(t *testing.T) {
	for _, msg := range []Message{Response("a", "Hi"), Done("a", "Hi", false), Done("a", "H", true), Failed("a", "Error: boom")} {
		if msg.Command != CommandChatResponse {
			t.Fatalf("%+v: command=%q, want %q", msg, msg.Command, CommandChatResponse)
		}
	}
	if Response("a", "Hi").Terminal() {
		t.Fatal("an incremental reply must not be terminal")
	}
	if !Done("a", "Hi", false).Terminal() || !Failed("a", "Error: boom").Terminal() {
		t.Fatal("final replies must be terminal")
	}
}

func TestApplyIgnoresUnknownCommand(t *testing.T) {
	p := New()
	msg, _ := p.Submit("Hello")
	if eff := p.Apply(Message{Command: CommandCancel, ID: msg.ID, Final: true}); eff.Changed {
		t.Fatalf("non-reply message changed the panel: %+v", eff)
	}
	if !p.Busy() {
		t.Fatal("panel went idle on a non-reply message")
	}
}

func TestHandleKey(t *testing.T) {
	tests := []struct {
		name        string
		ev          KeyEvent
		input       string
		wantSend    bool
		wantPrevent bool
	}{
		{name: "enter sends", ev: KeyEvent{Key: KeySubmit}, input: "hi", wantSend: true, wantPrevent: true},
		{name: "shift enter inserts newline", ev: KeyEvent{Key: KeySubmit, Shift: true}, input: "hi"},
		{name: "enter on blank input", ev: KeyEvent{Key: KeySubmit}, input: "   ", wantPrevent: true},
		{name: "other key", ev: KeyEvent{Key: "a"}, input: "hi"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := New()
			res := p.HandleKey(tc.ev, tc.input)
			if (res.Send != nil) != tc.wantSend {
				t.Fatalf("send=%+v, want send=%v", res.Send, tc.wantSend)
			}
			if res.PreventDefault != tc.wantPrevent {
				t.Fatalf("preventDefault=%v, want %v", res.PreventDefault, tc.wantPrevent)
			}
			if !tc.wantSend && len(p.Turns()) != 0 {
				t.Fatalf("turns created without a send: %+v", p.Turns())
			}
		})
	}
}

func TestShiftEnterNeverSends(t *testing.T) {
	p := New()
	for _, input := range []string{"a", "hello world", strings.Repeat("x", 100)} {
		if res := p.HandleKey(KeyEvent{Key: KeySubmit, Shift: true}, input); res.Send != nil || res.PreventDefault {
			t.Fatalf("shift+enter with %q = %+v", input, res)
		}
	}
}

func TestCancelAndReset(t *testing.T) {
	p := New(WithIDGenerator(sequentialIDs()))
	if _, ok := p.Cancel(); ok {
		t.Fatal("Cancel() while idle returned a message")
	}
	msg, _ := p.Submit("long")

	if p.Reset() {
		t.Fatal("Reset() allowed while awaiting")
	}
	cancel, ok := p.Cancel()
	if !ok || cancel != (Message{Command: CommandCancel, ID: msg.ID}) {
		t.Fatalf("Cancel()=%+v,%v", cancel, ok)
	}
	if !p.Busy() {
		t.Fatal("panel must await the bridge's confirmation")
	}

	p.Apply(Done(msg.ID, "part", true))
	if p.Busy() {
		t.Fatal("panel still busy after cancelled done")
	}
	if !p.Reset() || len(p.Turns()) != 0 {
		t.Fatalf("Reset() left turns %+v", p.Turns())
	}
}
