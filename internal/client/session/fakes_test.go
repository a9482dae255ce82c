package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/conn"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeChannel struct {
	frames  chan chat.Frame
	errs    chan error
	written chan chat.Frame

	mu    sync.Mutex
	failW error

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		frames:  make(chan chat.Frame, 16),
		errs:    make(chan error, 4),
		written: make(chan chat.Frame, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeChannel) Read(ctx context.Context) (chat.Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.errs:
		return chat.Frame{}, err
	case <-c.closed:
		return chat.Frame{}, errors.New("closed")
	case <-ctx.Done():
		return chat.Frame{}, ctx.Err()
	}
}

func (c *fakeChannel) Write(_ context.Context, f chat.Frame) error {
	c.mu.Lock()
	err := c.failW
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.written <- f
	return nil
}

func (c *fakeChannel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeChannel) failWrites(err error) {
	c.mu.Lock()
	c.failW = err
	c.mu.Unlock()
}

// fakeTransport accepts every token except the rejected ones and hands each
// new channel to the test through dialed.
type fakeTransport struct {
	mu     sync.Mutex
	reject map[string]bool
	tokens []string
	dialed chan *fakeChannel
}

func newFakeTransport(rejected ...string) *fakeTransport {
	t := &fakeTransport{reject: map[string]bool{}, dialed: make(chan *fakeChannel, 16)}
	for _, tok := range rejected {
		t.reject[tok] = true
	}
	return t
}

func (t *fakeTransport) Dial(_ context.Context, token string) (conn.Channel, error) {
	t.mu.Lock()
	t.tokens = append(t.tokens, token)
	rejected := t.reject[token]
	t.mu.Unlock()

	if rejected {
		return nil, fmt.Errorf("%w: 401", client.ErrUnauthorized)
	}
	ch := newFakeChannel()
	t.dialed <- ch
	return ch, nil
}

func (t *fakeTransport) dialedTokens() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.tokens...)
}

func (t *fakeTransport) next(tb testing.TB) *fakeChannel {
	tb.Helper()
	select {
	case ch := <-t.dialed:
		return ch
	case <-time.After(2 * time.Second):
		tb.Fatal("no dial")
		return nil
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[int]client.Page
	errs  map[int]error
	calls []int
	// hold, when set, makes FetchPage wait for ctx cancellation and then
	// return the page anyway.
	hold bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[int]client.Page{}, errs: map[int]error{}}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, page, _ int) (client.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	p, err, hold := f.pages[page], f.errs[page], f.hold
	f.mu.Unlock()

	if hold {
		<-ctx.Done()
	}
	return p, err
}

func (f *fakeFetcher) setErr(page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, page)
		return
	}
	f.errs[page] = err
}

func (f *fakeFetcher) callLog() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

type fakeClearer struct {
	err   error
	calls atomic.Int32
}

func (c *fakeClearer) ClearHistory(context.Context) error {
	c.calls.Add(1)
	return c.err
}

type memCache struct {
	mu      sync.Mutex
	msgs    []chat.Message
	loadErr error
	saves   int
}

func (c *memCache) Save(_ context.Context, msgs []chat.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append([]chat.Message(nil), msgs...)
	c.saves++
	return nil
}

func (c *memCache) Load(context.Context) ([]chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.msgs...), c.loadErr
}

func (c *memCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
	return nil
}

func (c *memCache) stored() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.msgs...)
}

type fakeTokens struct {
	token     string
	refreshed string
	refreshes atomic.Int32
}

func (t *fakeTokens) Token(context.Context) (string, error) {
	if t.token == "" {
		return "", client.ErrUnauthorized
	}
	return t.token, nil
}

func (t *fakeTokens) Refresh(context.Context) (string, error) {
	t.refreshes.Add(1)
	if t.refreshed == "" {
		return "", client.ErrUnauthorized
	}
	return t.refreshed, nil
}

type harness struct {
	s         *Session
	transport *fakeTransport
	fetcher   *fakeFetcher
	clearer   *fakeClearer
	cache     *memCache
	cancel    context.CancelFunc
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()

	h := &harness{
		transport: newFakeTransport(),
		fetcher:   newFakeFetcher(),
		clearer:   &fakeClearer{},
		cache:     &memCache{},
	}

	var ids atomic.Int64
	opts := Options{
		Transport: h.transport,
		Fetcher:   h.fetcher,
		Clearer:   h.clearer,
		Cache:     h.cache,
		Clock:     func() time.Time { return t0 },
		NewID:     func() string { return strconv.FormatInt(ids.Add(1), 10) },
		Username:  "ann",
		PageSize:  15,
		Conn: conn.Config{
			Backoff:      conn.Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2},
			DialTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	if tr, ok := opts.Transport.(*fakeTransport); ok {
		h.transport = tr
	}
	if c, ok := opts.Cache.(*memCache); ok {
		h.cache = c
	}
	return h.start(t, opts)
}

func (h *harness) start(t *testing.T, opts Options) *harness {
	t.Helper()
	h.s = New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { _ = h.s.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.s.Done():
		case <-time.After(2 * time.Second):
			t.Error("session did not stop")
		}
	})
	return h
}

func (h *harness) eventually(t *testing.T, cond func(Snapshot) bool, msg string) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.s.Snapshot()) }, 2*time.Second, 2*time.Millisecond, msg)
}

func (h *harness) connect(t *testing.T) *fakeChannel {
	t.Helper()
	require.NoError(t, h.s.Connect(context.Background(), "tok"))
	ch := h.transport.next(t)
	h.eventually(t, func(s Snapshot) bool { return s.State == conn.Connected }, "connected")
	return ch
}

func msg(id, author, body string, at time.Time, origin chat.Origin) chat.Message {
	return chat.Message{ID: id, Author: author, Body: body, SentAt: at, Origin: origin}
}

func record(id, author, body string, at time.Time) json.RawMessage {
	b, _ := json.Marshal(chat.ToRecord(chat.Message{ID: id, Author: author, Body: body, SentAt: at}))
	return b
}

func hasNote(s Snapshot, code string) bool {
	for _, n := range s.Notifications {
		if string(n.Code) == code {
			return true
		}
	}
	return false
}
