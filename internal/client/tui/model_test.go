package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/client/conn"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
	"github.com/dmitrijs2005/gophchat/internal/client/session"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeSession struct {
	mu      sync.Mutex
	snap    session.Snapshot
	calls   []string
	sent    []string
	sendErr error

	changes chan struct{}
	done    chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{changes: make(chan struct{}, 1), done: make(chan struct{})}
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSession) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSession) Changes() <-chan struct{} { return f.changes }
func (f *fakeSession) Done() <-chan struct{}    { return f.done }

func (f *fakeSession) SendMessage(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.sendErr
}

func (f *fakeSession) LoadMore(context.Context) error { f.record("more"); return nil }
func (f *fakeSession) Clear(context.Context) error    { f.record("clear"); return nil }
func (f *fakeSession) Connect(_ context.Context, cred string) error {
	f.record("connect:" + cred)
	return nil
}
func (f *fakeSession) Disconnect(context.Context) error { f.record("disconnect"); return nil }

func newModel(t *testing.T, f *fakeSession) Model {
	t.Helper()
	m := New(context.Background(), f, func() time.Time { return t0 })
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func press(t *testing.T, m Model, k tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func TestModel_EnterSendsMessage(t *testing.T) {
	f := newFakeSession()
	m := typeText(t, newModel(t, f), "hello there")

	m, cmd := press(t, m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	msg := cmd()
	res, ok := msg.(resultMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "send", res.op)
	assert.Equal(t, []string{"hello there"}, f.sent)

	next, _ := m.Update(res)
	assert.Empty(t, next.(Model).status)
}

func TestModel_FailedCommandShowsStatus(t *testing.T) {
	f := newFakeSession()
	f.sendErr = errors.New("not connected")
	m := typeText(t, newModel(t, f), "hi")

	m, cmd := press(t, m, tea.KeyEnter)
	next, _ := m.Update(cmd())

	assert.Contains(t, next.(Model).status, "send failed: not connected")
}

func TestModel_SlashCommands(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/more", "more"},
		{"/connect", "connect:"},
		{"/disconnect", "disconnect"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f := newFakeSession()
			m := typeText(t, newModel(t, f), tt.input)
			_, cmd := press(t, m, tea.KeyEnter)
			require.NotNil(t, cmd)
			cmd()
			assert.Equal(t, []string{tt.want}, f.calls)
			assert.Empty(t, f.sent)
		})
	}
}

func TestModel_ClearAsksForConfirmation(t *testing.T) {
	f := newFakeSession()
	m := typeText(t, newModel(t, f), "/clear")

	m, cmd := press(t, m, tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.True(t, m.confirmClear)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"clear"}, f.calls)
	assert.False(t, next.(Model).confirmClear)
}

func TestModel_ClearCancelled(t *testing.T) {
	f := newFakeSession()
	m := typeText(t, newModel(t, f), "/clear")
	m, _ = press(t, m, tea.KeyEnter)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.Nil(t, cmd)
	assert.Empty(t, f.calls)
	assert.Equal(t, "clear cancelled", next.(Model).status)
}

func TestModel_RendersSnapshotOnChange(t *testing.T) {
	f := newFakeSession()
	m := newModel(t, f)
	assert.Contains(t, m.View(), "No messages yet")

	f.mu.Lock()
	f.snap = session.Snapshot{
		Username: "ann",
		State:    conn.Connected,
		Messages: []chat.Message{
			{ID: "1", Author: "bob", Body: "first message", SentAt: t0.Add(-2 * time.Minute), Origin: chat.OriginHistory},
			{ID: "tmp-1", Author: "ann", Body: "on its way", SentAt: t0, Origin: chat.OriginOptimistic},
		},
		Pagination:    session.Pagination{CurrentPage: 1, TotalPages: 3},
		Notifications: []notify.Notification{{Code: notify.LoadMessagesFailed, Text: notify.Text(notify.LoadMessagesFailed)}},
	}
	f.mu.Unlock()

	next, cmd := m.Update(changedMsg{})
	require.NotNil(t, cmd, "keeps waiting for changes")
	view := next.(Model).View()

	assert.Contains(t, view, "first message")
	assert.Contains(t, view, "2 minutes ago")
	assert.Contains(t, view, "(sending)")
	assert.Contains(t, view, "page 1 of 3")
	assert.Contains(t, view, "connected")
	assert.Contains(t, view, "Failed to load messages.")
}

func TestModel_WaitChange(t *testing.T) {
	f := newFakeSession()
	m := newModel(t, f)

	f.changes <- struct{}{}
	assert.IsType(t, changedMsg{}, m.waitChange()())

	close(f.done)
	assert.IsType(t, sessionDoneMsg{}, m.waitChange()())

	_, cmd := m.Update(sessionDoneMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
