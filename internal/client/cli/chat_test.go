package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
	"github.com/dmitrijs2005/gophchat/internal/client/session"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func stubNow(t *testing.T) {
	t.Helper()
	orig := nowFn
	nowFn = func() time.Time { return t0 }
	t.Cleanup(func() { nowFn = orig })
}

func note(id uint64, code notify.Code, detail string) notify.Notification {
	return notify.Notification{ID: id, Code: code, Text: notify.Text(code), Detail: detail}
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name string
		m    chat.Message
		want string
	}{
		{
			name: "history entry",
			m:    chat.Message{ID: "1", Author: "bob", Body: "hi", SentAt: t0.Add(-3 * time.Hour), Origin: chat.OriginHistory},
			want: "[3 hours ago] bob: hi",
		},
		{
			name: "anonymous optimistic entry",
			m:    chat.Message{ID: "tmp-1", Body: "wait", SentAt: t0, Origin: chat.OriginOptimistic},
			want: "[now] " + chat.Anonymous + ": wait (sending)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMessage(tt.m, t0))
		})
	}
}

func TestSend_PrintsNotificationsOnce(t *testing.T) {
	lines := capturePrintln(t)
	ch := newFakeChat()
	ch.err = client.ErrNotConnected
	ch.setSnapshot(session.Snapshot{Notifications: []notify.Notification{note(1, notify.NotConnected, "")}})
	a := newTestApp(&fakeAuth{}, &fakeCreds{}, ch, "")

	require.ErrorIs(t, a.Send(context.Background(), "hello"), client.ErrNotConnected)
	require.ErrorIs(t, a.Send(context.Background(), "hello"), client.ErrNotConnected)

	assert.Equal(t, []string{"! " + notify.Text(notify.NotConnected)}, *lines)
	assert.Equal(t, []string{"hello", "hello"}, ch.sent)
}

func TestNotificationDetail(t *testing.T) {
	lines := capturePrintln(t)
	ch := newFakeChat()
	ch.setSnapshot(session.Snapshot{Notifications: []notify.Notification{note(7, notify.SendMessageFailed, "rate limited")}})
	a := newTestApp(&fakeAuth{}, &fakeCreds{}, ch, "")

	a.flushNotes()
	assert.Equal(t, []string{"! " + notify.Text(notify.SendMessageFailed) + " (rate limited)"}, *lines)
}

func TestMore(t *testing.T) {
	lines := capturePrintln(t)
	ch := newFakeChat()
	ch.setSnapshot(session.Snapshot{Pagination: session.Pagination{CurrentPage: 2, TotalPages: 3}})
	a := newTestApp(&fakeAuth{}, &fakeCreds{}, ch, "")

	require.NoError(t, a.More(context.Background()))
	ch.setSnapshot(session.Snapshot{Pagination: session.Pagination{CurrentPage: 3, TotalPages: 3}})
	require.NoError(t, a.More(context.Background()))

	assert.Equal(t, []string{"Loaded page 2 of 3", "No older messages"}, *lines)
	assert.Equal(t, []string{"more", "more"}, ch.callLog())
}

func TestMore_Error(t *testing.T) {
	lines := capturePrintln(t)
	ch := newFakeChat()
	ch.err = errors.New("boom")
	a := newTestApp(&fakeAuth{}, &fakeCreds{}, ch, "")

	require.Error(t, a.More(context.Background()))
	assert.Empty(t, *lines)
}

func TestHistory(t *testing.T) {
	stubNow(t)
	lines := capturePrintln(t)
	ch := newFakeChat()
	ch.setSnapshot(session.Snapshot{
		Messages: []chat.Message{
			{ID: "1", Author: "bob", Body: "one", SentAt: t0.Add(-2 * time.Minute), Origin: chat.OriginHistory},
			{ID: "2", Author: "ann", Body: "two", SentAt: t0.Add(-time.Minute), Origin: chat.OriginLive},
			{ID: "3", Author: "bob", Body: "three", SentAt: t0.Add(-10 * time.Second), Origin: chat.OriginLive},
		},
		Pagination: session.Pagination{CurrentPage: 1, TotalPages: 2},
	})
	a := newTestApp(&fakeAuth{}, &fakeCreds{}, ch, "")

	require.NoError(t, a.History(context.Background(), 2))
	assert.Equal(t, []string{
		"[1 minute ago] ann: two",
		"[10 seconds ago] bob: three",
		"(page 1 of 2, type 'more' for older messages)",
	}, *lines)
}

func TestHistory_Empty(t *testing.T) {
	lines := capturePrintln(t)
	a := newTestApp(&fakeAuth{}, &fakeCreds{}, newFakeChat(), "")

	require.NoError(t, a.History(context.Background(), 10))
	assert.Equal(t, []string{"No messages"}, *lines)
}

func TestClear_Confirmed(t *testing.T) {
	lines := capturePrintln(t)
	ch := newFakeChat()
	a := newTestApp(&fakeAuth{}, &fakeCreds{}, ch, "y\n")

	require.NoError(t, a.Clear(context.Background()))
	assert.Equal(t, []string{"clear"}, ch.callLog())
	assert.Contains(t, *lines, "History cleared")
}

func TestClear_Cancelled(t *testing.T) {
	lines := capturePrintln(t)
	ch := newFakeChat()
	a := newTestApp(&fakeAuth{}, &fakeCreds{}, ch, "n\n")

	require.NoError(t, a.Clear(context.Background()))
	assert.Empty(t, ch.callLog())
	assert.Equal(t, []string{"Cancelled"}, *lines)
}

func TestConnect_RequiresLogin(t *testing.T) {
	lines := capturePrintln(t)
	ch := newFakeChat()
	auth := &fakeAuth{}
	a := newTestApp(auth, &fakeCreds{}, ch, "")

	require.ErrorIs(t, a.Connect(context.Background()), client.ErrUnauthorized)
	assert.Equal(t, []string{"Please log in first"}, *lines)

	auth.creds = client.Credentials{AccessToken: "at"}
	require.NoError(t, a.Connect(context.Background()))
	require.NoError(t, a.Disconnect(context.Background()))
	assert.Equal(t, []string{"connect:", "disconnect"}, ch.callLog())
}

func TestPrintIncoming_OnlyNewLiveFromOthers(t *testing.T) {
	stubNow(t)
	lines := capturePrintln(t)
	ch := newFakeChat()
	a := newTestApp(&fakeAuth{}, &fakeCreds{}, ch, "")

	old := chat.Message{ID: "1", Author: "bob", Body: "old", SentAt: t0.Add(-time.Hour), Origin: chat.OriginLive}
	a.printIncoming(session.Snapshot{Messages: []chat.Message{old}}, "ann")
	assert.Empty(t, *lines, "first snapshot only primes")

	a.printIncoming(session.Snapshot{Messages: []chat.Message{
		old,
		{ID: "2", Author: "bob", Body: "older page", SentAt: t0.Add(-2 * time.Hour), Origin: chat.OriginHistory},
		{ID: "tmp-1", Author: "ann", Body: "mine", SentAt: t0, Origin: chat.OriginOptimistic},
		{ID: "3", Author: "ann", Body: "mine echoed", SentAt: t0, Origin: chat.OriginLive},
		{ID: "4", Author: "bob", Body: "new", SentAt: t0, Origin: chat.OriginLive},
	}}, "ann")

	assert.Equal(t, []string{"[now] bob: new"}, *lines)
}

func TestWatchChat(t *testing.T) {
	stubNow(t)
	lines := capturePrintln(t)
	ch := newFakeChat()
	a := newTestApp(&fakeAuth{}, &fakeCreds{}, ch, "")
	a.setUserName("ann")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.watchChat(ctx)
		close(done)
	}()

	ch.setSnapshot(session.Snapshot{
		Messages:      []chat.Message{{ID: "9", Author: "bob", Body: "ping", SentAt: t0, Origin: chat.OriginLive}},
		Notifications: []notify.Notification{note(1, notify.ConnectFailed, "")},
	})
	ch.changes <- struct{}{}

	// The watcher may observe the new snapshot while priming; only after the
	// change signal is consumed is the output settled.
	require.Eventually(t, func() bool { return len(ch.changes) == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Contains(t, *lines, "! "+notify.Text(notify.ConnectFailed))
}
