package session

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
)

// do runs fn on the event loop and waits for its reply. fn may hand the
// reply channel to an asynchronous completion instead of answering at once.
func (s *Session) do(ctx context.Context, fn func(ctx context.Context, reply chan<- error)) error {
	c := command{fn: fn, reply: make(chan error, 1)}

	select {
	case s.cmds <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}

	select {
	case err := <-c.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// Connect opens the live channel and concurrently loads the newest page. An
// empty credential falls back to the configured TokenSource.
func (s *Session) Connect(ctx context.Context, credential string) error {
	return s.do(ctx, func(ctx context.Context, reply chan<- error) {
		token := credential
		if token == "" && s.opts.Tokens != nil {
			t, err := s.opts.Tokens.Token(ctx)
			if err == nil {
				token = t
			}
		}
		if token == "" {
			s.notes.Push(notify.TokenNotFound, "")
			s.publish()
			reply <- client.ErrUnauthorized
			return
		}

		s.everConnected = false
		s.refreshTried = false
		s.mgr.Open(token)

		if !s.cursor.Known() {
			if req, ok := s.cursor.Next(); ok {
				s.startFetch(ctx, req, nil)
			}
		}
		s.publish()
		reply <- nil
	})
}

// Disconnect closes the live channel. The view is kept.
func (s *Session) Disconnect(ctx context.Context) error {
	return s.do(ctx, func(_ context.Context, reply chan<- error) {
		s.mgr.Close()
		reply <- nil
	})
}

// LoadMore fetches the next older page and waits for it to be merged. It is
// a no-op while a load is outstanding or once every page has been loaded.
func (s *Session) LoadMore(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context, reply chan<- error) {
		req, ok := s.cursor.Next()
		if !ok {
			reply <- nil
			return
		}
		s.publish()
		s.startFetch(ctx, req, reply)
	})
}

// Clear deletes the shared history on the server and, once that succeeds,
// empties the local view, cursor and cache.
func (s *Session) Clear(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context, reply chan<- error) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			err := s.opts.Clearer.ClearHistory(ctx)
			select {
			case s.cleared <- clearDone{err: err, reply: reply}:
			case <-ctx.Done():
			}
		}()
	})
}

// SetUsername changes the author used for outgoing messages.
func (s *Session) SetUsername(ctx context.Context, name string) error {
	return s.do(ctx, func(_ context.Context, reply chan<- error) {
		s.username = name
		s.publish()
		reply <- nil
	})
}
