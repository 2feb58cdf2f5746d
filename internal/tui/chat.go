// Package tui implements the interactive chat interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/avelasquez/docqa/internal/llm"
	"github.com/avelasquez/docqa/internal/ui"
)

// Asker is the session surface the chat needs.
type Asker interface {
	Ask(ctx context.Context, question string) (*llm.Answer, error)
}

// turn is one question/answer exchange.
type turn struct {
	question string
	answer   *llm.Answer
	err      error
}

// answerMsg carries the result of an ask back into the update loop.
type answerMsg struct {
	question string
	answer   *llm.Answer
	err      error
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	session Asker
	input   textinput.Model
	view    viewport.Model
	spin    spinner.Model

	turns   []turn
	asking  bool
	ready   bool
	summary string
}

// New creates the chat model. The summary line is shown under the header.
func New(session Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your documents"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ui.ColorPrimary)

	return Model{
		session: session,
		input:   ti,
		view:    viewport.New(0, 0),
		spin:    sp,
		summary: summary,
	}
}

// Init starts the text input cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, input box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.view.Width = msg.Width
		m.view.Height = vh
		m.view.SetContent(m.renderTurns())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter && !m.asking {
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.asking = true
				m.input.SetValue("")
				return m, tea.Batch(m.spin.Tick, m.ask(q))
			}
		}

	case answerMsg:
		m.asking = false
		m.turns = append(m.turns, turn{question: msg.question, answer: msg.answer, err: msg.err})
		m.view.SetContent(m.renderTurns())
		m.view.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if m.asking {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.view, cmd = m.view.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// ask runs the question off the update loop.
func (m Model) ask(question string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		answer, err := session.Ask(context.Background(), question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := ui.Header.Render("docqa chat")
	summary := ui.Dim.Render(m.summary)

	status := ui.Dim.Render("enter to ask, esc to quit")
	if m.asking {
		status = m.spin.View() + ui.Dim.Render(" thinking...")
	}

	input := inputBoxStyle.Render(m.input.View())

	return header + "\n" + summary + "\n" + m.view.View() + "\n" + input + "\n" + status
}

// renderTurns renders the conversation history.
func (m Model) renderTurns() string {
	if len(m.turns) == 0 {
		return ui.Dim.Render("No questions yet.")
	}

	var sb strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(questionStyle.Render("You: "+t.question) + "\n")

		if t.err != nil {
			sb.WriteString(ui.Error.Render("Error: "+t.err.Error()) + "\n")
			continue
		}

		sb.WriteString(t.answer.Text + "\n")
		for n, src := range t.answer.Sources {
			sb.WriteString(ui.FormatSource(n+1, src.Source, src.Index+1, src.Score) + "\n")
		}
	}
	return sb.String()
}

var (
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle = lipgloss.NewStyle().Foreground(ui.ColorPrimary).Bold(true)
)

// Run starts the chat program.
func Run(session Asker, summary string) error {
	p := tea.NewProgram(New(session, summary), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
