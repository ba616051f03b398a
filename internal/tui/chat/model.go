// Package chat is the terminal chat panel.
package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cmuxiao/deepchat/internal/bridge"
	"github.com/cmuxiao/deepchat/internal/panel"
	"github.com/cmuxiao/deepchat/internal/ui"
)

const (
	inputHeight = 3
	// header, busy line, input border and help line
	chromeHeight = inputHeight + 5

	helpText = "enter send • alt+enter/ctrl+j newline • esc stop • ctrl+l clear • ctrl+c quit"
)

// Options configures the terminal panel.
type Options struct {
	Title     string
	ModelName string
	Styles    *ui.Styles
}

// Model is the bubbletea model of the terminal panel.
type Model struct {
	ctx     context.Context
	backend StreamBackend
	panel   *panel.Panel
	opts    Options
	styles  *ui.Styles

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	width, height int
	stream        <-chan panel.Message
	status        string
	quitting      bool
}

// New creates a terminal panel talking to backend.
func New(ctx context.Context, backend StreamBackend, opts Options) *Model {
	if opts.Title == "" {
		opts.Title = "deepchat"
	}
	styles := opts.Styles
	if styles == nil {
		styles = ui.DefaultStyles()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask something..."
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.SetWidth(80)
	// Enter is the submit key; newline needs its shift-equivalent.
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Muted

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return &Model{
		ctx:      ctx,
		backend:  backend,
		panel:    panel.New(),
		opts:     opts,
		styles:   styles,
		textarea: ta,
		viewport: vp,
		spinner:  sp,
	}
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case replyMsg:
		return m.handleReply(msg.msg)

	case streamClosedMsg:
		if m.panel.PendingID() == msg.id {
			return m.handleReply(panel.Failed(msg.id, bridge.ErrorPrefix+"response stream ended unexpectedly"))
		}
		return m, nil

	case spinner.TickMsg:
		if !m.panel.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if cancel, ok := m.panel.Cancel(); ok {
			m.backend.Cancel(cancel.ID)
		}
		m.quitting = true
		return m, tea.Quit

	case "esc":
		if cancel, ok := m.panel.Cancel(); ok {
			m.backend.Cancel(cancel.ID)
			m.status = "Stopping..."
		}
		return m, nil

	case "ctrl+l":
		if !m.panel.Reset() {
			m.status = "Wait for the response, or press Esc to stop it"
			return m, nil
		}
		m.status = ""
		m.refreshViewport(false)
		return m, nil
	}

	if ev, ok := keyEvent(msg); ok {
		res := m.panel.HandleKey(ev, m.textarea.Value())
		if res.Send != nil {
			m.textarea.Reset()
			m.status = ""
			m.refreshViewport(true)
			return m, m.send(*res.Send)
		}
		if res.PreventDefault {
			if m.panel.Busy() {
				m.status = "Waiting for the response, press Esc to stop it"
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// keyEvent maps terminal keys onto the panel's submit key. Terminals do
// not report shift on Enter, so alt+enter and ctrl+j stand in for it.
func keyEvent(msg tea.KeyMsg) (panel.KeyEvent, bool) {
	switch msg.Type {
	case tea.KeyEnter:
		return panel.KeyEvent{Key: panel.KeySubmit, Shift: msg.Alt}, true
	case tea.KeyCtrlJ:
		return panel.KeyEvent{Key: panel.KeySubmit, Shift: true}, true
	}
	return panel.KeyEvent{}, false
}

func (m *Model) send(msg panel.Message) tea.Cmd {
	ch, err := m.backend.Send(m.ctx, msg)
	if err != nil {
		return func() tea.Msg {
			return replyMsg{msg: panel.Failed(msg.ID, bridge.ErrorPrefix+err.Error())}
		}
	}
	m.stream = ch
	return tea.Batch(waitForReply(msg.ID, ch), m.spinner.Tick)
}

func (m *Model) handleReply(msg panel.Message) (tea.Model, tea.Cmd) {
	id := m.panel.PendingID()
	eff := m.panel.Apply(msg)
	if eff.Changed {
		m.refreshViewport(eff.ScrollToBottom)
	}
	if eff.Finished {
		m.stream = nil
		m.status = ""
		if msg.Cancelled {
			m.status = "Stopped"
		}
		return m, nil
	}
	if m.stream != nil && id != "" {
		return m, waitForReply(id, m.stream)
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.textarea.SetWidth(max(width-4, 10))
	m.viewport.Width = width
	m.viewport.Height = max(height-chromeHeight, 3)
	m.refreshViewport(true)
}

func (m *Model) refreshViewport(bottom bool) {
	m.viewport.SetContent(m.renderTurns())
	if bottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderTurns() string {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	body := lipgloss.NewStyle().Width(width).PaddingLeft(2)

	var b strings.Builder
	for i, turn := range m.panel.Turns() {
		if i > 0 {
			b.WriteString("\n")
		}
		switch turn.Role {
		case panel.RoleUser:
			b.WriteString(m.styles.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(body.Render(turn.Text))
		default:
			label := m.opts.ModelName
			if label == "" {
				label = "Assistant"
			}
			b.WriteString(m.styles.BotLabel.Render(label))
			b.WriteString("\n")
			text := body.Render(turn.Text)
			if strings.HasPrefix(turn.Text, bridge.ErrorPrefix) {
				text = m.styles.Error.Render(text)
			}
			b.WriteString(text)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	header := m.styles.Title.Render(m.opts.Title)
	if m.opts.ModelName != "" {
		header += m.styles.Subtitle.Render(" · " + m.opts.ModelName)
	}

	status := m.status
	if m.panel.Busy() && status == "" {
		status = m.spinner.View() + " thinking"
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.viewport.View(),
		m.styles.Muted.Render(status),
		m.styles.Input.Render(m.textarea.View()),
		m.styles.Muted.Render(helpText),
	)
}

// Turns returns the conversation shown in the panel.
func (m *Model) Turns() []panel.Turn {
	return m.panel.Turns()
}
