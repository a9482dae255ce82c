package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/logging"
)

type Config struct {
	Backoff      Backoff
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Backoff:      DefaultBackoff(),
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Manager owns the Connection Session: credential, state, attempt count and
// last error. All updates are delivered in order on Updates(). A run that was
// superseded by Close or a new Open never publishes again.
type Manager struct {
	transport Transport
	cfg       Config
	logger    logging.Logger

	mu      sync.Mutex
	state   State
	attempt int
	lastErr error
	gen     uint64
	cancel  context.CancelFunc
	ch      Channel

	pending []Update
	pumping bool
	updates chan Update
	quit    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
}

func NewManager(t Transport, cfg Config, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		transport: t,
		cfg:       cfg,
		logger:    logger.With("module", "conn"),
		state:     Idle,
		updates:   make(chan Update, 64),
		quit:      make(chan struct{}),
	}
}

// Updates returns the ordered stream of transitions and inbound events.
func (m *Manager) Updates() <-chan Update { return m.updates }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Open starts connecting with credential, superseding any current run. An
// empty credential fails immediately as unauthorized.
func (m *Manager) Open(credential string) {
	m.mu.Lock()
	ch := m.abandonLocked()

	if credential == "" {
		m.setLocked(Failed, ReasonUnauthorized, client.ErrUnauthorized)
		m.mu.Unlock()
		closeChannel(ch)
		return
	}

	m.attempt = 0
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	gen := m.gen
	m.setLocked(Connecting, ReasonNone, nil)
	m.wg.Add(1)
	m.mu.Unlock()

	closeChannel(ch)
	go m.run(ctx, gen, credential)
}

// Close ends the session and returns to Idle. In-flight dials and reconnect
// waits are abandoned.
func (m *Manager) Close() {
	m.mu.Lock()
	ch := m.abandonLocked()
	m.mu.Unlock()
	closeChannel(ch)
}

// Stop closes the session, waits for the connection goroutine to exit and
// stops delivering updates. The manager cannot be used afterwards.
func (m *Manager) Stop() {
	m.Close()
	m.wg.Wait()
	m.stop.Do(func() { close(m.quit) })
}

// Send submits a message over the live channel. It fails with
// client.ErrNotConnected unless the state is Connected.
func (m *Manager) Send(ctx context.Context, body, author string) error {
	m.mu.Lock()
	ch := m.ch
	connected := m.state == Connected
	m.mu.Unlock()

	if !connected || ch == nil {
		return client.ErrNotConnected
	}

	if m.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.WriteTimeout)
		defer cancel()
	}

	if err := ch.Write(ctx, chat.Frame{Type: chat.FrameSend, Body: body, Author: author}); err != nil {
		return fmt.Errorf("%w: send: %w", client.ErrNetwork, err)
	}
	return nil
}

// abandonLocked supersedes the current run and moves to Idle. It returns the
// open channel, if any, for the caller to close outside the lock.
func (m *Manager) abandonLocked() Channel {
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	ch := m.ch
	m.ch = nil

	switch m.state {
	case Idle:
	case Connected:
		m.setLocked(Disconnected, ReasonClient, nil)
		m.setLocked(Idle, ReasonClient, nil)
	default:
		m.setLocked(Idle, ReasonClient, nil)
	}
	return ch
}

func closeChannel(ch Channel) {
	if ch != nil {
		_ = ch.Close()
	}
}

func (m *Manager) run(ctx context.Context, gen uint64, token string) {
	defer m.wg.Done()

	for {
		ch, err := m.dial(ctx, token)
		if ctx.Err() != nil {
			closeChannel(ch)
			return
		}

		if err != nil {
			if errors.Is(err, client.ErrUnauthorized) {
				m.logger.Warn(ctx, "credential rejected", "error", err)
				m.transition(gen, Failed, ReasonUnauthorized, err)
				return
			}
			m.logger.Warn(ctx, "dial failed", "error", err)
			if !m.retry(ctx, gen, ReasonNetwork, err) {
				return
			}
			continue
		}

		if !m.connected(gen, ch) {
			closeChannel(ch)
			return
		}
		m.logger.Info(ctx, "connected")

		reason, rerr := m.readLoop(ctx, gen, ch)
		closeChannel(ch)
		if ctx.Err() != nil {
			return
		}

		m.logger.Warn(ctx, "disconnected", "reason", reason, "error", rerr)
		if !m.disconnected(gen, reason, rerr) {
			return
		}

		switch reason {
		case ReasonUnauthorized:
			m.transition(gen, Failed, ReasonUnauthorized, rerr)
			return
		case ReasonClient:
			m.transition(gen, Idle, ReasonClient, nil)
			return
		}

		if !m.retry(ctx, gen, reason, rerr) {
			return
		}
	}
}

func (m *Manager) dial(ctx context.Context, token string) (Channel, error) {
	dctx := ctx
	if m.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, m.cfg.DialTimeout)
		defer cancel()
	}

	ch, err := m.transport.Dial(dctx, token)
	if err != nil && !errors.Is(err, client.ErrUnauthorized) && !errors.Is(err, client.ErrNetwork) {
		err = fmt.Errorf("%w: %w", client.ErrNetwork, err)
	}
	return ch, err
}

// retry moves to Reconnecting, waits out the backoff and moves to Connecting.
// It returns false when the run was superseded meanwhile.
func (m *Manager) retry(ctx context.Context, gen uint64, reason Reason, err error) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	m.attempt++
	attempt := m.attempt
	m.setLocked(Reconnecting, reason, err)
	m.mu.Unlock()

	delay := m.cfg.Backoff.Delay(attempt)
	m.logger.Debug(ctx, "reconnect scheduled", "attempt", attempt, "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}

	return m.transition(gen, Connecting, ReasonNone, nil)
}

func (m *Manager) connected(gen uint64, ch Channel) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.attempt = 0
	m.ch = ch
	m.setLocked(Connected, ReasonNone, nil)
	return true
}

func (m *Manager) disconnected(gen uint64, reason Reason, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.ch = nil
	m.setLocked(Disconnected, reason, err)
	return true
}

func (m *Manager) readLoop(ctx context.Context, gen uint64, ch Channel) (Reason, error) {
	for {
		f, err := ch.Read(ctx)
		if err != nil {
			if errors.Is(err, ErrBadFrame) {
				m.logger.Warn(ctx, "skipping bad frame", "error", err)
				continue
			}
			return classify(err), err
		}

		ev, ok := decodeFrame(f)
		if !ok {
			m.logger.Debug(ctx, "ignoring frame", "type", f.Type)
			continue
		}
		if ev.Dropped > 0 {
			m.logger.Warn(ctx, "dropped malformed messages", "count", ev.Dropped, "kind", ev.Kind)
		}
		if !m.publish(gen, Update{Event: &ev}) {
			return ReasonClient, nil
		}
	}
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		return ReasonUnauthorized
	case errors.Is(err, ErrServerClosed):
		return ReasonServer
	default:
		return ReasonNetwork
	}
}

func (m *Manager) transition(gen uint64, to State, reason Reason, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.setLocked(to, reason, err)
	return true
}

func (m *Manager) publish(gen uint64, u Update) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.enqueueLocked(u)
	return true
}

func (m *Manager) setLocked(to State, reason Reason, err error) {
	tr := Transition{From: m.state, To: to, Reason: reason, Attempt: m.attempt, Err: err}
	m.state = to
	if err != nil {
		m.lastErr = err
	}
	m.enqueueLocked(Update{Transition: &tr})
}

// enqueueLocked appends u to the delivery queue. Delivery happens on a pump
// goroutine so that state changes never block on a slow consumer.
func (m *Manager) enqueueLocked(u Update) {
	m.pending = append(m.pending, u)
	if !m.pumping {
		m.pumping = true
		go m.pump()
	}
}

func (m *Manager) pump() {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.pumping = false
			m.mu.Unlock()
			return
		}
		u := m.pending[0]
		m.pending[0] = Update{}
		m.pending = m.pending[1:]
		m.mu.Unlock()

		select {
		case m.updates <- u:
		case <-m.quit:
			m.mu.Lock()
			m.pending = nil
			m.pumping = false
			m.mu.Unlock()
			return
		}
	}
}
