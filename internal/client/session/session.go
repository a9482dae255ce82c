// Package session is the message synchronization core of the chat client. A
// Session owns the Reconciled View, the Page Cursor and the Connection
// Manager, and serializes every mutation on one event-loop goroutine (Run).
// Presentation layers read immutable snapshots and issue commands.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/conn"
	"github.com/dmitrijs2005/gophchat/internal/client/history"
	"github.com/dmitrijs2005/gophchat/internal/client/notify"
	"github.com/dmitrijs2005/gophchat/internal/client/reconcile"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

// ErrClosed is returned by commands issued after Run has returned.
var ErrClosed = errors.New("session closed")

// Clearer deletes the shared history on the server.
type Clearer interface {
	ClearHistory(ctx context.Context) error
}

// Cache persists the view between runs. *cache.Cache implements it.
type Cache interface {
	Save(ctx context.Context, msgs []chat.Message) error
	Load(ctx context.Context) ([]chat.Message, error)
	Clear(ctx context.Context) error
}

type Options struct {
	// Tokens supplies the credential when Connect is called without one
	// and refreshes it once after the live channel rejects it. Optional.
	Tokens    client.TokenSource
	Transport conn.Transport
	Fetcher   history.Fetcher
	Clearer   Clearer
	// Cache is optional.
	Cache  Cache
	Logger logging.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// NewID mints optimistic ids; defaults to uuid.NewString.
	NewID func() string

	Username     string
	PageSize     int
	Tolerance    time.Duration
	FetchTimeout time.Duration
	Conn         conn.Config
	NotifyTTL    time.Duration
}

type Pagination struct {
	CurrentPage int
	TotalPages  int
	Loading     bool
}

// Snapshot is a read-only copy of the session state for presentation.
type Snapshot struct {
	Messages      []chat.Message
	State         conn.State
	Pagination    Pagination
	Notifications []notify.Notification
	Username      string
}

type command struct {
	fn    func(ctx context.Context, reply chan<- error)
	reply chan error
}

type fetchDone struct {
	history.Result
	reply chan<- error
}

type clearDone struct {
	err   error
	reply chan<- error
}

type sendDone struct {
	id  string
	err error
}

type refreshDone struct {
	token string
	err   error
}

type Session struct {
	opts   Options
	logger logging.Logger
	now    func() time.Time
	newID  func() string

	mgr    *conn.Manager
	view   *reconcile.View
	cursor *history.Cursor
	notes  *notify.Center

	username       string
	state          conn.State
	everConnected  bool
	refreshPending bool
	refreshTried   bool

	cmds      chan command
	fetched   chan fetchDone
	cleared   chan clearDone
	sent      chan sendDone
	refreshed chan refreshDone

	snapMu  sync.RWMutex
	snap    Snapshot
	changed chan struct{}

	wg      sync.WaitGroup
	runOnce sync.Once
	done    chan struct{}
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.PageSize < 1 {
		opts.PageSize = 15
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = chat.DefaultTolerance
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.Conn == (conn.Config{}) {
		opts.Conn = conn.DefaultConfig()
	}

	s := &Session{
		opts:      opts,
		logger:    opts.Logger.With("module", "session"),
		now:       opts.Clock,
		newID:     opts.NewID,
		mgr:       conn.NewManager(opts.Transport, opts.Conn, opts.Logger),
		view:      reconcile.NewView(opts.Tolerance),
		cursor:    history.NewCursor(opts.PageSize),
		notes:     notify.NewCenter(opts.NotifyTTL, opts.Clock),
		username:  opts.Username,
		state:     conn.Idle,
		cmds:      make(chan command),
		fetched:   make(chan fetchDone),
		cleared:   make(chan clearDone),
		sent:      make(chan sendDone),
		refreshed: make(chan refreshDone),
		changed:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	s.snap = s.buildSnapshot()
	return s
}

// Snapshot returns the latest published state. Expired notifications are
// filtered on read.
func (s *Session) Snapshot() Snapshot {
	s.snapMu.RLock()
	snap := s.snap
	s.snapMu.RUnlock()
	snap.Notifications = s.notes.Active()
	return snap
}

// Changes is signalled after every published mutation. Readers call Snapshot
// to observe the new state.
func (s *Session) Changes() <-chan struct{} { return s.changed }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run primes the view from the cache and processes events until ctx is
// cancelled. In-flight fetches are abandoned and the live channel is closed
// on return. Run must be called once.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.mgr.Stop()
		s.wg.Wait()
		s.runOnce.Do(func() { close(s.done) })
	}()

	s.prime(ctx)

	expiry := time.NewTimer(time.Hour)
	defer expiry.Stop()
	s.armExpiry(expiry)

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-s.cmds:
			c.fn(ctx, c.reply)
		case u := <-s.mgr.Updates():
			s.handleUpdate(ctx, u)
		case r := <-s.fetched:
			s.handleFetch(ctx, r)
		case r := <-s.cleared:
			s.handleClear(ctx, r)
		case r := <-s.sent:
			s.handleSent(ctx, r)
		case r := <-s.refreshed:
			s.handleRefresh(ctx, r)
		case <-expiry.C:
			s.signal()
		}
		s.armExpiry(expiry)
	}
}

// prime merges the cached view. A cache failure is logged and ignored.
func (s *Session) prime(ctx context.Context) {
	if s.opts.Cache == nil {
		return
	}
	msgs, err := s.opts.Cache.Load(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cache load failed, starting empty", "error", err)
		return
	}
	changed, dropped := s.view.MergeAll(msgs)
	if dropped > 0 {
		s.logger.Warn(ctx, "dropped malformed cached messages", "count", dropped)
	}
	s.logger.Debug(ctx, "view primed from cache", "messages", changed)
	s.publish()
}

func (s *Session) handleUpdate(ctx context.Context, u conn.Update) {
	switch {
	case u.Transition != nil:
		s.handleTransition(ctx, *u.Transition)
	case u.Event != nil:
		s.handleEvent(ctx, *u.Event)
	}
}

func (s *Session) handleTransition(ctx context.Context, tr conn.Transition) {
	s.state = tr.To
	s.logger.Debug(ctx, "connection state", "from", tr.From, "to", tr.To, "reason", tr.Reason, "attempt", tr.Attempt)

	switch tr.To {
	case conn.Connected:
		s.refreshTried = false
		if s.everConnected {
			// messages sent while we were away
			s.startFetch(ctx, s.cursor.Refresh(), nil)
		} else if !s.cursor.Known() {
			if req, ok := s.cursor.Next(); ok {
				s.startFetch(ctx, req, nil)
			}
		}
		s.everConnected = true
	case conn.Reconnecting:
		if !s.everConnected && tr.Attempt == 1 {
			s.notes.Push(notify.ConnectFailed, errString(tr.Err))
		}
	case conn.Failed:
		if tr.Reason == conn.ReasonUnauthorized {
			s.onUnauthorized(ctx)
		}
	}
	s.publish()
}

// onUnauthorized tries one token refresh before giving up on the session.
func (s *Session) onUnauthorized(ctx context.Context) {
	if s.opts.Tokens == nil || s.refreshTried || s.refreshPending {
		s.notes.Push(notify.SessionExpired, "")
		return
	}
	s.refreshTried = true
	s.refreshPending = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		token, err := s.opts.Tokens.Refresh(ctx)
		select {
		case s.refreshed <- refreshDone{token: token, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) handleRefresh(ctx context.Context, r refreshDone) {
	s.refreshPending = false
	if r.err != nil || r.token == "" {
		s.logger.Warn(ctx, "token refresh failed", "error", r.err)
		s.notes.Push(notify.SessionExpired, errString(r.err))
		s.publish()
		return
	}
	s.logger.Info(ctx, "token refreshed, reconnecting")
	s.mgr.Open(r.token)
}

func (s *Session) handleEvent(ctx context.Context, ev conn.Event) {
	switch ev.Kind {
	case conn.EventHistory, conn.EventMessage:
		s.merge(ctx, ev.Messages, ev.Dropped)
	case conn.EventError:
		s.logger.Warn(ctx, "server reported an error", "error", ev.Error)
		s.notes.Push(notify.SendMessageFailed, ev.Error)
		s.publish()
	case conn.EventCleared:
		s.logger.Info(ctx, "history cleared remotely")
		s.clearLocal(ctx)
	}
}

func (s *Session) startFetch(ctx context.Context, req history.Request, reply chan<- error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res := history.Fetch(ctx, s.opts.Fetcher, req, s.opts.FetchTimeout)
		select {
		case s.fetched <- fetchDone{Result: res, reply: reply}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) handleFetch(ctx context.Context, r fetchDone) {
	var err error
	defer func() {
		if r.reply != nil {
			r.reply <- err
		}
	}()

	if r.Err != nil {
		err = r.Err
		if !s.cursor.Fail(r.Request) {
			return
		}
		s.logger.Warn(ctx, "history fetch failed", "page", r.Request.Page, "error", r.Err)
		if errors.Is(r.Err, client.ErrUnauthorized) {
			s.notes.Push(notify.SessionExpired, "")
		} else {
			s.notes.Push(notify.LoadMessagesFailed, errString(r.Err))
		}
		s.publish()
		return
	}

	if !s.cursor.Complete(r.Request, r.Page.TotalPages) {
		s.logger.Debug(ctx, "dropping stale page", "page", r.Request.Page)
		return
	}
	s.merge(ctx, r.Page.Messages, r.Page.Dropped)
	s.publish()
}

func (s *Session) handleClear(ctx context.Context, r clearDone) {
	if r.err != nil {
		s.logger.Warn(ctx, "clear failed", "error", r.err)
		s.notes.Push(notify.ClearMessagesFailed, errString(r.err))
		s.publish()
	} else {
		s.clearLocal(ctx)
	}
	if r.reply != nil {
		r.reply <- r.err
	}
}

func (s *Session) handleSent(ctx context.Context, r sendDone) {
	if r.err == nil {
		return
	}
	s.logger.Warn(ctx, "send failed", "id", r.id, "error", r.err)
	s.notes.Push(notify.SendMessageFailed, errString(r.err))
	s.publish()
}

// merge inserts msgs into the view and persists it when anything changed.
func (s *Session) merge(ctx context.Context, msgs []chat.Message, dropped int) {
	changed, invalid := s.view.MergeAll(msgs)
	if n := dropped + invalid; n > 0 {
		s.logger.Warn(ctx, "dropped malformed messages", "count", n)
	}
	if changed > 0 {
		s.persist(ctx)
		s.publish()
	}
}

// clearLocal empties the view, the cursor and the cache. Outstanding page
// reads are invalidated by the cursor reset.
func (s *Session) clearLocal(ctx context.Context) {
	s.view.Clear()
	s.cursor.Reset()
	if s.opts.Cache != nil {
		if err := s.opts.Cache.Clear(ctx); err != nil {
			s.logger.Warn(ctx, "cache clear failed", "error", err)
		}
	}
	s.publish()
}

func (s *Session) persist(ctx context.Context) {
	if s.opts.Cache == nil {
		return
	}
	if err := s.opts.Cache.Save(ctx, s.view.Snapshot()); err != nil {
		s.logger.Warn(ctx, "cache save failed", "error", err)
	}
}

func (s *Session) buildSnapshot() Snapshot {
	return Snapshot{
		Messages: s.view.Snapshot(),
		State:    s.state,
		Pagination: Pagination{
			CurrentPage: s.cursor.Page,
			TotalPages:  s.cursor.Total,
			Loading:     s.cursor.Loading,
		},
		Username: s.username,
	}
}

func (s *Session) publish() {
	snap := s.buildSnapshot()
	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()
	s.signal()
}

func (s *Session) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Session) armExpiry(t *time.Timer) {
	at, ok := s.notes.NextExpiry()
	if !ok {
		return
	}
	d := at.Sub(s.now())
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
