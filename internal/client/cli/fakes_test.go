package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/config"
	"github.com/dmitrijs2005/gophchat/internal/client/session"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

type fakeAuth struct {
	// Register / Login
	gotUser string
	gotPass []byte
	out     client.Credentials
	err     error
	calls   []string

	creds client.Credentials
}

func (f *fakeAuth) call(name, user string, pass []byte) (client.Credentials, error) {
	f.calls = append(f.calls, name)
	f.gotUser, f.gotPass = user, append([]byte(nil), pass...)
	if f.err != nil {
		return client.Credentials{}, f.err
	}
	f.creds = f.out
	return f.out, nil
}

func (f *fakeAuth) Register(_ context.Context, user string, pass []byte) (client.Credentials, error) {
	return f.call("register", user, pass)
}

func (f *fakeAuth) Login(_ context.Context, user string, pass []byte) (client.Credentials, error) {
	return f.call("login", user, pass)
}

func (f *fakeAuth) Credentials() client.Credentials    { return f.creds }
func (f *fakeAuth) SetCredentials(c client.Credentials) { f.creds = c }

type fakeCreds struct {
	stored   client.Credentials
	loadErr  error
	clearErr error
	cleared  bool
}

func (f *fakeCreds) Load(context.Context) (client.Credentials, error) { return f.stored, f.loadErr }
func (f *fakeCreds) Save(_ context.Context, c client.Credentials) error {
	f.stored = c
	return nil
}
func (f *fakeCreds) Clear(context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	f.stored = client.Credentials{}
	return nil
}

type fakeChat struct {
	mu    sync.Mutex
	snap  session.Snapshot
	calls []string
	sent  []string
	names []string
	err   error

	changes chan struct{}
	done    chan struct{}
}

func newFakeChat() *fakeChat {
	return &fakeChat{changes: make(chan struct{}, 1), done: make(chan struct{})}
}

func (f *fakeChat) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeChat) setSnapshot(s session.Snapshot) {
	f.mu.Lock()
	f.snap = s
	f.mu.Unlock()
}

func (f *fakeChat) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeChat) Run(ctx context.Context) error {
	<-ctx.Done()
	close(f.done)
	return ctx.Err()
}

func (f *fakeChat) Done() <-chan struct{} { return f.done }

func (f *fakeChat) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeChat) Changes() <-chan struct{} { return f.changes }

func (f *fakeChat) Connect(_ context.Context, cred string) error {
	return f.record("connect:" + cred)
}
func (f *fakeChat) Disconnect(context.Context) error { return f.record("disconnect") }
func (f *fakeChat) LoadMore(context.Context) error   { return f.record("more") }
func (f *fakeChat) Clear(context.Context) error      { return f.record("clear") }

func (f *fakeChat) SendMessage(_ context.Context, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return f.record("send")
}

func (f *fakeChat) SetUsername(_ context.Context, name string) error {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()
	return nil
}

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(context.Context) error { return p.err }

// capturePrintln swaps printlnFn for a recorder and returns the printed lines.
func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var (
		mu    sync.Mutex
		lines []string
	)
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		line := strings.TrimSuffix(fmt.Sprintln(a...), "\n")
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		return len(line), nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func newTestApp(auth *fakeAuth, creds *fakeCreds, chat *fakeChat, input string) *App {
	return &App{
		config: &config.Config{},
		logger: logging.Discard(),
		auth:   auth,
		creds:  creds,
		chat:   chat,
		health: &fakePinger{},
		reader: rdr(input),
		out:    &bytes.Buffer{},
	}
}
