// Package panel holds the state of one chat panel independent of how it is
// drawn: the conversation turns, the busy state and the input rules.
package panel

import (
	"strings"

	"github.com/google/uuid"
)

// Role attributes a turn.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Placeholder is the text of a bot turn before its first update.
const Placeholder = "..."

// Turn is one rendered entry of the conversation.
type Turn struct {
	Role Role
	Text string
}

// State is idle or awaiting a response.
type State int

const (
	StateIdle State = iota
	StateAwaiting
)

func (s State) String() string {
	if s == StateAwaiting {
		return "awaiting"
	}
	return "idle"
}

// KeySubmit names the key that submits the input.
const KeySubmit = "enter"

// KeyEvent is a key press in the input box.
type KeyEvent struct {
	Key   string
	Shift bool
}

// KeyResult tells the front end what to do with a key press.
type KeyResult struct {
	// Send is the message to forward, or nil.
	Send *Message
	// PreventDefault suppresses the key's default newline insertion.
	PreventDefault bool
}

// Effect describes the visible change caused by Apply.
type Effect struct {
	Changed        bool
	ScrollToBottom bool
	Finished       bool
}

// Panel is a single chat panel. It is not safe for concurrent use.
type Panel struct {
	turns     []Turn
	state     State
	pendingID string
	botIndex  int
	newID     func() string
}

// Option configures a Panel.
type Option func(*Panel)

// WithIDGenerator replaces the uuid generator used for correlation ids.
func WithIDGenerator(gen func() string) Option {
	return func(p *Panel) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// New creates an idle, empty panel.
func New(opts ...Option) *Panel {
	p := &Panel{botIndex: -1, newID: uuid.NewString}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit starts a turn for input. It returns false, leaving the panel
// untouched, when input is blank or a response is still awaited.
func (p *Panel) Submit(input string) (Message, bool) {
	text := strings.TrimSpace(input)
	if text == "" || p.state == StateAwaiting {
		return Message{}, false
	}
	p.pendingID = p.newID()
	p.state = StateAwaiting
	p.turns = append(p.turns, Turn{Role: RoleUser, Text: text})
	p.turns = append(p.turns, Turn{Role: RoleBot, Text: Placeholder})
	p.botIndex = len(p.turns) - 1
	return Message{Command: CommandChat, ID: p.pendingID, Text: text}, true
}

// HandleKey applies the submit-key rule: the submit key without shift
// always suppresses newline insertion and submits the input when allowed;
// with shift it never submits.
func (p *Panel) HandleKey(ev KeyEvent, input string) KeyResult {
	if ev.Key != KeySubmit || ev.Shift {
		return KeyResult{}
	}
	res := KeyResult{PreventDefault: true}
	if msg, ok := p.Submit(input); ok {
		res.Send = &msg
	}
	return res
}

// Apply renders a message from the bridge. Messages for another request
// id, or arriving while idle, are ignored. Every chatResponse replaces the
// bot turn text; only a final one returns the panel to idle.
func (p *Panel) Apply(msg Message) Effect {
	if p.state != StateAwaiting || msg.ID != p.pendingID || msg.Command != CommandChatResponse {
		return Effect{}
	}
	p.turns[p.botIndex].Text = msg.Text
	if !msg.Final {
		return Effect{Changed: true, ScrollToBottom: true}
	}
	p.state = StateIdle
	p.pendingID = ""
	return Effect{Changed: true, ScrollToBottom: true, Finished: true}
}

// Cancel returns the message that aborts the awaited request. The panel
// stays awaiting until the bridge sends the final reply.
func (p *Panel) Cancel() (Message, bool) {
	if p.state != StateAwaiting {
		return Message{}, false
	}
	return Message{Command: CommandCancel, ID: p.pendingID}, true
}

// Reset clears the conversation. It is refused while awaiting.
func (p *Panel) Reset() bool {
	if p.state == StateAwaiting {
		return false
	}
	p.turns = nil
	p.botIndex = -1
	return true
}

// Turns returns a copy of the conversation.
func (p *Panel) Turns() []Turn {
	out := make([]Turn, len(p.turns))
	copy(out, p.turns)
	return out
}

// State returns the current state.
func (p *Panel) State() State { return p.state }

// Busy reports whether the busy indicator is shown.
func (p *Panel) Busy() bool { return p.state == StateAwaiting }

// SendEnabled reports whether the send control is enabled.
func (p *Panel) SendEnabled() bool { return p.state == StateIdle }

// PendingID returns the id of the awaited request, empty when idle.
func (p *Panel) PendingID() string { return p.pendingID }
