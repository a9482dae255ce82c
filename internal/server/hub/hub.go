// Package hub runs the relay's live channel: it authenticates WebSocket
// clients, sends them recent history, and fans every accepted message out to
// all connected clients.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/metrics"
)

// MessageStore persists new messages and serves the history sent on connect.
type MessageStore interface {
	Post(ctx context.Context, author, body string) (chat.Message, error)
	Recent(ctx context.Context, n int) ([]chat.Message, error)
}

// Authenticator verifies a bearer access token.
type Authenticator interface {
	Authenticate(token string) (*auth.Claims, error)
}

type Options struct {
	HistoryOnConnect int
	SendRPS          float64
	SendBurst        int
	PingInterval     time.Duration
	PongTimeout      time.Duration
	WriteTimeout     time.Duration
	StoreTimeout     time.Duration
	OriginPatterns   []string
	ReadLimit        int64
	SendBuffer       int
}

func (o *Options) applyDefaults() {
	if o.SendRPS <= 0 {
		o.SendRPS = 5
	}
	if o.SendBurst <= 0 {
		o.SendBurst = 10
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
}

// Hub tracks connected clients. It is an http.Handler for the live channel
// endpoint.
type Hub struct {
	store   MessageStore
	auth    Authenticator
	metrics *metrics.Metrics
	logger  logging.Logger
	opts    Options

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

func New(store MessageStore, authn Authenticator, m *metrics.Metrics, logger logging.Logger, opts Options) *Hub {
	opts.applyDefaults()
	return &Hub{
		store:   store,
		auth:    authn,
		metrics: m,
		logger:  logger.With("module", "hub"),
		opts:    opts,
		clients: make(map[*Client]struct{}),
	}
}

// tokenFromRequest reads the bearer token from the Authorization header,
// falling back to the token query parameter for browser clients.
func tokenFromRequest(r *http.Request) string {
	if t := common.BearerToken(r.Header.Get(common.AuthorizationHeaderName)); t != "" {
		return t
	}
	return strings.TrimSpace(r.URL.Query().Get(common.TokenQueryParam))
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(tokenFromRequest(r))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.opts.OriginPatterns})
	if err != nil {
		h.logger.Warn(r.Context(), "websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(h.opts.ReadLimit)

	c := newClient(conn, h, claims)
	if !h.addClient(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server is shutting down")
		return
	}
	defer h.removeClient(c)

	h.logger.Info(r.Context(), "client connected", "user", claims.Username, "remote", r.RemoteAddr)
	c.run()
	h.logger.Info(r.Context(), "client disconnected", "user", claims.Username)
}

// BroadcastMessage delivers m to every connected client.
func (h *Hub) BroadcastMessage(m chat.Message) {
	raw, err := json.Marshal(chat.ToRecord(m))
	if err != nil {
		h.logger.Error(context.Background(), "marshal message", "error", err)
		return
	}
	h.broadcast(chat.Frame{Type: chat.FrameMessage, Message: raw})
}

// BroadcastCleared tells every client that the shared history was cleared.
func (h *Hub) BroadcastCleared() {
	h.broadcast(chat.Frame{Type: chat.FrameCleared})
}

func (h *Hub) broadcast(f chat.Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error(context.Background(), "marshal frame", "type", f.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.deliver(data)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client with a going-away status and refuses new
// connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.closeWith(websocket.StatusGoingAway, "server is shutting down")
	}
}

func (h *Hub) addClient(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.Connections.Inc()
	return true
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.metrics.Connections.Dec()
	}
	h.mu.Unlock()
	c.cancel()
}
