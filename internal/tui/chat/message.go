package chat

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cmuxiao/deepchat/internal/panel"
)

// replyMsg carries one bridge reply into the update loop.
type replyMsg struct {
	msg panel.Message
}

// streamClosedMsg reports that the reply channel of a request closed.
type streamClosedMsg struct {
	id string
}

// waitForReply reads the next reply for id.
func waitForReply(id string, ch <-chan panel.Message) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return streamClosedMsg{id: id}
		}
		return replyMsg{msg: msg}
	}
}
