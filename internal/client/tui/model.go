// Package tui is a full-screen terminal front end for a chat session built on
// bubbletea. It renders session snapshots and turns key presses into session
// commands; it never mutates chat state itself.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/gophchat/internal/client/session"
)

// Session is the command and snapshot surface the UI needs.
// *session.Session implements it.
type Session interface {
	Snapshot() session.Snapshot
	Changes() <-chan struct{}
	Done() <-chan struct{}
	SendMessage(ctx context.Context, text string) error
	LoadMore(ctx context.Context) error
	Clear(ctx context.Context) error
	Connect(ctx context.Context, credential string) error
	Disconnect(ctx context.Context) error
}

const helpLine = "enter send · pgup older · /more /clear /connect /disconnect /quit · ctrl+c exit"

type changedMsg struct{}

type sessionDoneMsg struct{}

type resultMsg struct {
	op  string
	err error
}

type Model struct {
	ctx  context.Context
	sess Session
	now  func() time.Time

	snap     session.Snapshot
	input    textinput.Model
	timeline viewport.Model
	theme    theme

	width        int
	height       int
	status       string
	confirmClear bool
}

func New(ctx context.Context, sess Session, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}

	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Type a message"
	input.Focus()

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true

	return Model{
		ctx:      ctx,
		sess:     sess,
		now:      now,
		snap:     sess.Snapshot(),
		input:    input,
		timeline: timeline,
		theme:    newTheme(),
	}
}

// Run shows the UI until the user quits, the session stops or ctx is done.
func Run(ctx context.Context, sess Session) error {
	p := tea.NewProgram(New(ctx, sess, time.Now), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitChange())
}

func (m Model) waitChange() tea.Cmd {
	changes, done := m.sess.Changes(), m.sess.Done()
	return func() tea.Msg {
		select {
		case <-changes:
			return changedMsg{}
		case <-done:
			return sessionDoneMsg{}
		}
	}
}

// run executes a blocking session command off the UI goroutine.
func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.render()

	case changedMsg:
		m.snap = m.sess.Snapshot()
		m.render()
		cmds = append(cmds, m.waitChange())

	case sessionDoneMsg:
		return m, tea.Quit

	case resultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.op, msg.err)
		} else {
			m.status = ""
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.confirmClear {
			m.confirmClear = false
			if msg.String() == "y" || msg.String() == "Y" {
				m.status = "clearing history..."
				return m, m.run("clear", m.sess.Clear)
			}
			m.status = "clear cancelled"
			return m, nil
		}

		switch msg.String() {
		case "enter":
			text := m.input.Value()
			m.input.Reset()
			cmd := m.submit(text)
			return m, cmd

		case "pgup":
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			cmds = append(cmds, cmd)
			if m.timeline.AtTop() {
				cmds = append(cmds, m.run("load", m.sess.LoadMore))
			}

		case "pgdown":
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			cmds = append(cmds, cmd)

		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit handles a line from the input box: either a slash command or a
// message to send.
func (m *Model) submit(text string) tea.Cmd {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return m.run("send", func(ctx context.Context) error {
			return m.sess.SendMessage(ctx, text)
		})
	}

	switch strings.Fields(trimmed)[0] {
	case "/more":
		return m.run("load", m.sess.LoadMore)
	case "/clear":
		m.confirmClear = true
		m.status = "delete the chat history for everyone? (y/N)"
		return nil
	case "/connect":
		return m.run("connect", func(ctx context.Context) error {
			return m.sess.Connect(ctx, "")
		})
	case "/disconnect":
		return m.run("disconnect", m.sess.Disconnect)
	case "/quit", "/exit":
		return tea.Quit
	default:
		m.status = "unknown command " + trimmed
		return nil
	}
}

func (m *Model) resize() {
	contentWidth := max(20, m.width-4)
	m.timeline.Width = contentWidth
	m.timeline.Height = max(3, m.height-8)
	m.input.Width = max(10, contentWidth-4)
}

func (m *Model) render() {
	atBottom := m.timeline.AtBottom()
	m.timeline.SetContent(m.renderTimeline())
	if atBottom {
		m.timeline.GotoBottom()
	}
}

func (m Model) renderTimeline() string {
	if len(m.snap.Messages) == 0 {
		return m.theme.help.Render("No messages yet")
	}

	now := m.now()
	lines := make([]string, 0, len(m.snap.Messages)+1)
	if p := m.snap.Pagination; p.CurrentPage < p.TotalPages {
		lines = append(lines, m.theme.help.Render(fmt.Sprintf("page %d of %d · pgup for older", p.CurrentPage, p.TotalPages)))
	}
	for _, msg := range m.snap.Messages {
		author := m.theme.author
		if msg.Author == m.snap.Username && m.snap.Username != "" {
			author = m.theme.self
		}
		line := m.theme.timestamp.Render(humanize.RelTime(msg.SentAt, now, "ago", "from now")) + " " +
			author.Render(msg.DisplayAuthor()) + ": " + msg.Body
		if msg.IsOptimistic() {
			line += " " + m.theme.pending.Render("(sending)")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHeader() string {
	title := "GophChat"
	if m.snap.Username != "" {
		title += " · " + m.snap.Username
	}
	state := m.snap.State.String()
	if m.snap.Pagination.Loading {
		state += " · loading"
	}
	return m.theme.header.Render(title) + m.theme.status.Render(state)
}

func (m Model) renderFooter() string {
	var lines []string
	for _, n := range m.snap.Notifications {
		text := n.Text
		if n.Detail != "" {
			text += " (" + n.Detail + ")"
		}
		lines = append(lines, m.theme.notice.Render("! "+text))
	}
	if m.status != "" {
		lines = append(lines, m.theme.status.Render(m.status))
	}
	lines = append(lines, m.theme.help.Render(helpLine))
	return strings.Join(lines, "\n")
}

func (m Model) View() string {
	panel := m.theme.panel.Render(m.timeline.View())
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		panel,
		m.input.View(),
		m.renderFooter(),
	)
}
