package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cadueduardo/MAF/internal/domain"
)

// ChatPort is the TUI-facing subset of the agent.
type ChatPort interface {
	Ask(ctx context.Context, question string, history []domain.Message) <-chan string
	Suggest(ctx context.Context) []string
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	agent     ChatPort
	input     textinput.Model
	viewport  viewport.Model
	history   []domain.Message
	answer    string
	stream    <-chan string
	status    string
	ready     bool
	streaming bool
}

// New creates a new chat model. Suggestions, when available, seed the
// status line so the first screen is not empty.
func New(agent ChatPort, suggestions []string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about a product and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	status := "Ready. Type a question."
	if len(suggestions) > 0 {
		status = "Try: " + strings.Join(suggestions, " | ")
	}
	return Model{agent: agent, input: ti, viewport: vp, status: status}
}

type fragmentMsg string

type streamDoneMsg struct{}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// readStream pulls the next fragment off the answer channel.
func readStream(stream <-chan string) tea.Cmd {
	return func() tea.Msg {
		fragment, ok := <-stream
		if !ok {
			return streamDoneMsg{}
		}
		return fragmentMsg(fragment)
	}
}

// Update handles key, window and stream events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-ch)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case fragmentMsg:
		m.answer += string(msg)
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, readStream(m.stream)
	case streamDoneMsg:
		m.history = append(m.history, domain.Message{Role: domain.RoleAssistant, Content: m.answer})
		m.answer = ""
		m.stream = nil
		m.streaming = false
		m.status = "Ready."
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.streaming {
				past := m.history
				m.history = append(m.history, domain.Message{Role: domain.RoleUser, Content: q})
				m.stream = m.agent.Ask(context.Background(), q, past)
				m.streaming = true
				m.status = "Answering..."
				m.input.SetValue("")
				m.viewport.SetContent(m.renderTranscript())
				m.viewport.GotoBottom()
				return m, readStream(m.stream)
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("MAF Product Assistant")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	chat := chatBoxStyle.Render(m.viewport.View())
	return header + "\n" + chat + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 && m.answer == "" {
		return "No messages yet."
	}
	var b strings.Builder
	for _, msg := range m.history {
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You: ") + msg.Content + "\n\n")
		case domain.RoleAssistant:
			b.WriteString(agentStyle.Render("MAF: ") + msg.Content + "\n\n")
		}
	}
	if m.streaming {
		b.WriteString(agentStyle.Render("MAF: ") + m.answer)
	}
	return b.String()
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	agentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
