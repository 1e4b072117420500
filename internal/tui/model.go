package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/rag"
	"docchat/internal/service"
)

// SessionPort is the TUI-facing subset of a chat session.
type SessionPort interface {
	ProcessDocuments(ctx context.Context, docs []rag.Document) (service.ProcessResult, error)
	Ask(ctx context.Context, question string) (service.AskResult, error)
	Reset(ctx context.Context)
}

type processedMsg struct {
	result service.ProcessResult
	err    error
}

type answeredMsg struct {
	result service.AskResult
	err    error
}

// Model is the Bubble Tea model for the terminal chat.
type Model struct {
	ctx     context.Context
	session SessionPort
	docs    []rag.Document

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	history []rag.Turn
	pending string
	summary string
	status  string
	busy    bool
	indexed bool
	ready   bool
}

// New creates a model that indexes docs on start and then chats about them.
func New(ctx context.Context, session SessionPort, docs []rag.Document) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /reset or /quit"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		session:  session,
		docs:     docs,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		busy:     true,
		status:   fmt.Sprintf("Processing %d document(s)...", len(docs)),
	}
}

// Init starts indexing the documents.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.process())
}

func (m Model) process() tea.Cmd {
	session, ctx, docs := m.session, m.ctx, m.docs
	return func() tea.Msg {
		res, err := session.ProcessDocuments(ctx, docs)
		return processedMsg{result: res, err: err}
	}
}

func (m Model) ask(question string) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		res, err := session.Ask(ctx, question)
		return answeredMsg{result: res, err: err}
	}
}

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := boxStyle.GetFrameSize()
		reserved := 2 + 1 + bh + 1 // header + summary, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case processedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + describeError(msg.err) + " (/quit to exit)"
			return m, nil
		}
		m.indexed = true
		r := msg.result
		m.summary = fmt.Sprintf("%d document(s), %d characters, %d chunks (min %d / mean %.0f / max %d runes)",
			r.Documents, r.Characters, r.Chunks, r.Stats.Min, r.Stats.Mean, r.Stats.Max)
		m.status = "Ready. Ask a question."
		return m, nil

	case answeredMsg:
		m.busy = false
		m.pending = ""
		if msg.err != nil {
			m.status = "Error: " + describeError(msg.err)
		} else {
			m.history = msg.result.History
			m.status = fmt.Sprintf("Answered from %d source(s).", len(msg.result.Sources))
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	switch {
	case text == "/quit":
		return m, tea.Quit
	case text == "":
		return m, nil
	case m.busy:
		m.status = "Still working, please wait."
		return m, nil
	case text == "/reset":
		m.input.Reset()
		m.session.Reset(m.ctx)
		m.history = nil
		m.status = "History cleared."
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case !m.indexed:
		m.status = "No documents indexed. /quit to exit."
		return m, nil
	}

	m.input.Reset()
	m.pending = text
	m.busy = true
	m.status = "Thinking..."
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	return m, tea.Batch(m.spinner.Tick, m.ask(text))
}

// View renders the header, transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("docchat")
	summary := dimStyle.Render(m.summary)
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" + boxStyle.Render(m.viewport.View()) + "\n" +
		boxStyle.Render(m.input.View()) + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 && m.pending == "" {
		return dimStyle.Render("No messages yet.")
	}
	width := max(20, m.viewport.Width-4)
	var b strings.Builder
	for _, turn := range m.history {
		b.WriteString(renderTurn(turn, width))
		b.WriteString("\n\n")
	}
	if m.pending != "" {
		b.WriteString(renderTurn(rag.Turn{Role: rag.RoleUser, Content: m.pending}, width))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTurn(turn rag.Turn, width int) string {
	label := userStyle.Render("You")
	if turn.Role == rag.RoleAssistant {
		label = assistantStyle.Render("Assistant")
	}
	return label + "\n" + lipgloss.NewStyle().Width(width).Render(turn.Content)
}

// describeError renders err for the status line.
func describeError(err error) string {
	var svcErr *rag.ServiceError
	if errors.As(err, &svcErr) {
		msg := fmt.Sprintf("%s service failed (%s)", svcErr.Service, svcErr.Reason)
		if svcErr.Retryable() {
			msg += ", try again"
		}
		return msg
	}
	return err.Error()
}

var (
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
