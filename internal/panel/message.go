package panel

// Commands carried in Message.Command.
const (
	// panel -> bridge
	CommandChat   = "chat"
	CommandCancel = "cancel"

	// bridge -> panel: every reply, error text included.
	CommandChatResponse = "chatResponse"
)

// Message is the JSON envelope exchanged between a panel and the bridge.
// Text of a chatResponse is always the full text of the bot turn. A
// request's replies end with one chatResponse marked Final; Error marks a
// final reply whose text is the "Error: " message. Panels that only read
// command and text still render every reply correctly.
type Message struct {
	Command   string `json:"command"`
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	Final     bool   `json:"final,omitempty"`
	Error     bool   `json:"error,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// Terminal reports whether m ends its request.
func (m Message) Terminal() bool {
	return m.Command == CommandChatResponse && m.Final
}

// Response is an incremental reply carrying the text accumulated so far.
func Response(id, text string) Message {
	return Message{Command: CommandChatResponse, ID: id, Text: text}
}

// Done is the final reply of a completed or cancelled request.
func Done(id, text string, cancelled bool) Message {
	return Message{Command: CommandChatResponse, ID: id, Text: text, Final: true, Cancelled: cancelled}
}

// Failed is the final reply of a failed request. text is the full error
// message, prefix included.
func Failed(id, text string) Message {
	return Message{Command: CommandChatResponse, ID: id, Text: text, Final: true, Error: true}
}
