package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/cache"
	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/client/config"
	"github.com/dmitrijs2005/gophchat/internal/client/conn"
	"github.com/dmitrijs2005/gophchat/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophchat/internal/client/repositories/pebblekv"
	"github.com/dmitrijs2005/gophchat/internal/client/session"
	"github.com/dmitrijs2005/gophchat/internal/filex"
	"github.com/dmitrijs2005/gophchat/internal/logging"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const pingTimeout = 3 * time.Second

// authService is the part of the relay API the CLI drives directly.
type authService interface {
	Register(ctx context.Context, username string, password []byte) (client.Credentials, error)
	Login(ctx context.Context, username string, password []byte) (client.Credentials, error)
	Credentials() client.Credentials
	SetCredentials(c client.Credentials)
}

type credentialStore interface {
	Load(ctx context.Context) (client.Credentials, error)
	Save(ctx context.Context, c client.Credentials) error
	Clear(ctx context.Context) error
}

// chatSession is satisfied by *session.Session.
type chatSession interface {
	Run(ctx context.Context) error
	Done() <-chan struct{}
	Snapshot() session.Snapshot
	Changes() <-chan struct{}
	Connect(ctx context.Context, credential string) error
	Disconnect(ctx context.Context) error
	LoadMore(ctx context.Context) error
	Clear(ctx context.Context) error
	SendMessage(ctx context.Context, text string) error
	SetUsername(ctx context.Context, name string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	auth    authService
	creds   credentialStore
	chat    chatSession
	health  pinger
	closers []func() error

	mu       sync.Mutex
	userName string
	Mode     Mode
	feed     *feed
	running  int

	// background tracks the watcher goroutines started by the UI.
	background sync.WaitGroup

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the local store selected by the configuration and builds the
// relay client, the live transport and the chat session on top of it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	repo, closeRepo, err := openStore(ctx, c)
	if err != nil {
		logger.Error(ctx, "error initializing local store", "error", err)
		return nil, err
	}
	closers := []func() error{closeRepo}

	api, err := client.NewHTTPClient(c.ServerURL, c.FetchTimeout)
	if err != nil {
		_ = closeRepo()
		return nil, err
	}

	creds := client.NewCredentialStore(repo)
	api.OnCredentials = func(cr client.Credentials) {
		if err := creds.Save(context.Background(), cr); err != nil {
			logger.Warn(context.Background(), "failed to persist credentials", "error", err)
		}
	}

	transport, err := conn.NewWSTransport(c.ServerURL, nil)
	if err != nil {
		_ = closeRepo()
		return nil, err
	}

	health, err := client.NewHealthChecker(c.HealthAddr)
	if err != nil {
		_ = closeRepo()
		return nil, err
	}
	closers = append(closers, health.Close)

	sess := session.New(session.Options{
		Tokens:       api,
		Transport:    transport,
		Fetcher:      api,
		Clearer:      api,
		Cache:        cache.New(repo),
		Logger:       logger,
		PageSize:     c.PageSize,
		Tolerance:    c.MergeTolerance,
		FetchTimeout: c.FetchTimeout,
		Conn: conn.Config{
			Backoff:      conn.Backoff{Base: c.ReconnectBase, Max: c.ReconnectMax, Multiplier: 2},
			DialTimeout:  c.DialTimeout,
			WriteTimeout: conn.DefaultConfig().WriteTimeout,
		},
	})

	return &App{
		config:  c,
		logger:  logger.With("module", "cli"),
		auth:    api,
		creds:   creds,
		chat:    sess,
		health:  health,
		closers: closers,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

// openStore returns the key-value store holding credentials and the message
// cache, plus its closer.
func openStore(ctx context.Context, c *config.Config) (metadata.Repository, func() error, error) {
	if _, err := filex.EnsureParentDir(c.CachePath); err != nil {
		return nil, nil, err
	}
	if c.CacheBackend == config.CachePebble {
		store, err := pebblekv.Open(c.CachePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	db, err := client.InitDatabase(ctx, c.CachePath)
	if err != nil {
		return nil, nil, err
	}
	return metadata.NewSQLiteRepository(db), db.Close, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()

	if changed {
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) setUserName(name string) {
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
}

func (a *App) user() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userName
}

// Run starts the chat session and blocks in the selected user interface until
// the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close()

	go func() {
		if err := a.chat.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error(ctx, "session stopped", "error", err)
		}
	}()

	var err error
	if a.config.UI == config.UITUI {
		err = a.runTUI(ctx)
	} else {
		a.Root(ctx)
	}

	cancel()
	a.background.Wait()
	<-a.chat.Done()
	return err
}

// spawn runs f on a goroutine that Run waits for before closing resources.
func (a *App) spawn(f func()) {
	a.mu.Lock()
	a.running++
	a.mu.Unlock()
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		defer func() {
			a.mu.Lock()
			a.running--
			a.mu.Unlock()
		}()
		f()
	}()
}

func (a *App) runningWorkers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.auth.Credentials().AccessToken != ""
}

// StartOnlineStatusWatcher probes the relay health endpoint every interval and
// switches Mode accordingly. It returns when ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := a.health.Ping(ctx)
	cancel()

	if err != nil {
		a.setMode(ModeOffline)
	} else {
		a.setMode(ModeOnline)
	}
}
