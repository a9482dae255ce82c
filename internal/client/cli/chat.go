package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/session"
)

// nowFn is a test seam for the clock used in relative timestamps.
var nowFn = time.Now

// Send submits text to the chat. Rejections surface as notifications.
func (a *App) Send(ctx context.Context, text string) error {
	err := a.chat.SendMessage(ctx, text)
	a.flushNotes()
	return err
}

// More loads the next older page of history.
func (a *App) More(ctx context.Context) error {
	err := a.chat.LoadMore(ctx)
	a.flushNotes()
	if err != nil {
		return err
	}

	p := a.chat.Snapshot().Pagination
	if p.TotalPages == 0 || p.CurrentPage >= p.TotalPages {
		printlnFn("No older messages")
		return nil
	}
	printlnFn(fmt.Sprintf("Loaded page %d of %d", p.CurrentPage, p.TotalPages))
	return nil
}

// History prints the newest n messages of the view, oldest first.
func (a *App) History(_ context.Context, n int) error {
	snap := a.chat.Snapshot()
	msgs := snap.Messages
	if len(msgs) == 0 {
		printlnFn("No messages")
		return nil
	}
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}

	now := nowFn()
	for _, m := range msgs {
		printlnFn(formatMessage(m, now))
	}
	if p := snap.Pagination; p.CurrentPage < p.TotalPages {
		printlnFn(fmt.Sprintf("(page %d of %d, type 'more' for older messages)", p.CurrentPage, p.TotalPages))
	}
	return nil
}

// Clear deletes the shared history after confirmation.
func (a *App) Clear(ctx context.Context) error {
	if !Confirm(a.reader, "Delete the chat history for everyone?", a.out) {
		printlnFn("Cancelled")
		return nil
	}
	err := a.chat.Clear(ctx)
	a.flushNotes()
	if err == nil {
		printlnFn("History cleared")
	}
	return err
}

// Connect opens the live channel with the stored access token.
func (a *App) Connect(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Please log in first")
		return client.ErrUnauthorized
	}
	err := a.chat.Connect(ctx, "")
	a.flushNotes()
	return err
}

func (a *App) Disconnect(ctx context.Context) error {
	return a.chat.Disconnect(ctx)
}

func formatMessage(m chat.Message, now time.Time) string {
	line := fmt.Sprintf("[%s] %s: %s", humanize.RelTime(m.SentAt, now, "ago", "from now"), m.DisplayAuthor(), m.Body)
	if m.IsOptimistic() {
		line += " (sending)"
	}
	return line
}

// feed tracks what has already been printed so that the watcher and the
// command handlers never repeat a line.
type feed struct {
	notes  map[uint64]bool
	msgs   map[string]bool
	primed bool
}

func newFeed() *feed {
	return &feed{notes: map[uint64]bool{}, msgs: map[string]bool{}}
}

// flushNotes prints notifications that have not been shown yet.
func (a *App) flushNotes() {
	a.printNotes(a.chat.Snapshot())
}

func (a *App) printNotes(snap session.Snapshot) {
	a.mu.Lock()
	if a.feed == nil {
		a.feed = newFeed()
	}
	var lines []string
	for _, n := range snap.Notifications {
		if a.feed.notes[n.ID] {
			continue
		}
		a.feed.notes[n.ID] = true
		line := "! " + n.Text
		if n.Detail != "" {
			line += " (" + n.Detail + ")"
		}
		lines = append(lines, line)
	}
	a.mu.Unlock()

	for _, l := range lines {
		printlnFn(l)
	}
}

// printIncoming prints live messages from other participants that arrived
// since the last call. The first call only records what is already there.
func (a *App) printIncoming(snap session.Snapshot, me string) {
	a.mu.Lock()
	primed := a.feed != nil && a.feed.primed
	if a.feed == nil {
		a.feed = newFeed()
	}
	var fresh []chat.Message
	for _, m := range snap.Messages {
		if !m.HasStableID() || a.feed.msgs[m.ID] {
			continue
		}
		a.feed.msgs[m.ID] = true
		if primed && m.Origin == chat.OriginLive && m.Author != me {
			fresh = append(fresh, m)
		}
	}
	a.feed.primed = true
	a.mu.Unlock()

	now := nowFn()
	for _, m := range fresh {
		printlnFn(formatMessage(m, now))
	}
}

// watchChat prints incoming messages and notifications as the session
// changes. It returns when ctx is done or the session stops.
func (a *App) watchChat(ctx context.Context) {
	a.printIncoming(a.chat.Snapshot(), a.user())
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.chat.Done():
			return
		case <-a.chat.Changes():
			snap := a.chat.Snapshot()
			a.printIncoming(snap, a.user())
			a.printNotes(snap)
		}
	}
}
