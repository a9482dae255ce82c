package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/conn"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
)

// SendMessage is the Outbound Dispatcher. It rejects empty text and sends
// while not Connected without touching the view or the network. Otherwise the
// message is shown at once as an optimistic entry and transmitted in the
// background. A failed transmission raises a notification; the optimistic
// entry stays.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	return s.do(ctx, func(ctx context.Context, reply chan<- error) {
		reply <- s.dispatch(ctx, text)
	})
}

func (s *Session) dispatch(ctx context.Context, text string) error {
	body := strings.TrimSpace(text)
	if body == "" {
		s.notes.Push(notify.EmptyMessage, "")
		s.publish()
		return fmt.Errorf("%w: empty message", client.ErrValidation)
	}
	if s.mgr.State() != conn.Connected {
		s.notes.Push(notify.NotConnected, "")
		s.publish()
		return client.ErrNotConnected
	}

	author := s.username
	if strings.TrimSpace(author) == "" {
		author = chat.Anonymous
	}

	m := chat.Message{
		ID:     chat.TempIDPrefix + s.newID(),
		Author: author,
		Body:   body,
		SentAt: chat.Truncate(s.now()),
		Origin: chat.OriginOptimistic,
	}
	if _, err := s.view.Merge(m); err != nil {
		return fmt.Errorf("%w: %w", client.ErrValidation, err)
	}
	s.persist(ctx)
	s.publish()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.mgr.Send(ctx, body, author)
		select {
		case s.sent <- sendDone{id: m.ID, err: err}:
		case <-ctx.Done():
		}
	}()
	return nil
}
