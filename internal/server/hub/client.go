package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
)

// Client is one live connection. Frames reach the socket only through the
// send queue, which writePump drains.
type Client struct {
	conn    *websocket.Conn
	hub     *Hub
	claims  *auth.Claims
	limiter *rate.Limiter

	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	ready       bool
	backlog     [][]byte
	closeCode   websocket.StatusCode
	closeReason string
}

func newClient(conn *websocket.Conn, h *Hub, claims *auth.Claims) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:      conn,
		hub:       h,
		claims:    claims,
		limiter:   rate.NewLimiter(rate.Limit(h.opts.SendRPS), h.opts.SendBurst),
		send:      make(chan []byte, h.opts.SendBuffer),
		ctx:       ctx,
		cancel:    cancel,
		closeCode: websocket.StatusNormalClosure,
	}
}

// run sends the history frame and then serves the connection until either
// side closes it. Broadcasts that arrive before the history is queued are
// held back and flushed right after it.
func (c *Client) run() {
	defer c.cancel()

	go c.writePump()
	go c.keepalive()

	if err := c.sendHistory(); err != nil {
		c.hub.logger.Error(c.ctx, "load history", "user", c.claims.Username, "error", err)
		c.closeWith(websocket.StatusInternalError, "history unavailable")
		return
	}
	c.readPump()
}

func (c *Client) sendHistory() error {
	ctx, cancel := context.WithTimeout(c.ctx, c.hub.opts.StoreTimeout)
	defer cancel()

	var msgs []chat.Message
	if n := c.hub.opts.HistoryOnConnect; n > 0 {
		var err error
		if msgs, err = c.hub.store.Recent(ctx, n); err != nil {
			return err
		}
	}

	records, err := chat.EncodeRecords(msgs)
	if err != nil {
		return err
	}
	data, err := json.Marshal(chat.Frame{Type: chat.FrameHistory, Messages: records})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueueLocked(data)
	for _, b := range c.backlog {
		c.enqueueLocked(b)
	}
	c.backlog = nil
	c.ready = true
	return nil
}

// readPump reads with a context that is never cancelled: cancelling a read
// would make the library close the socket before writePump can send the
// intended close code.
func (c *Client) readPump() {
	for {
		typ, data, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			c.sendError("binary frames are not supported")
			continue
		}

		var f chat.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.sendError("invalid JSON")
			continue
		}

		switch f.Type {
		case chat.FrameSend:
			c.handleSend(f)
		default:
			c.sendError(fmt.Sprintf("unsupported frame type %q", f.Type))
		}
	}
}

func (c *Client) handleSend(f chat.Frame) {
	if !c.limiter.Allow() {
		c.hub.metrics.RejectedSends.WithLabelValues("rate_limited").Inc()
		c.sendError("rate limit exceeded, slow down")
		return
	}

	author := c.claims.Username
	if author == "" {
		author = f.Author
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.hub.opts.StoreTimeout)
	defer cancel()

	m, err := c.hub.store.Post(ctx, author, f.Body)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			c.hub.metrics.RejectedSends.WithLabelValues("invalid").Inc()
			c.sendError(strings.TrimPrefix(err.Error(), common.ErrorValidation.Error()+": "))
			return
		}
		c.hub.metrics.RejectedSends.WithLabelValues("store_failed").Inc()
		c.hub.logger.Error(ctx, "save message", "user", author, "error", err)
		c.sendError("failed to save message")
		return
	}

	c.hub.metrics.Messages.Inc()
	c.hub.BroadcastMessage(m)
}

func (c *Client) writePump() {
	defer func() {
		c.mu.Lock()
		code, reason := c.closeCode, c.closeReason
		c.mu.Unlock()
		_ = c.conn.Close(code, reason)
	}()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.send:
			ctx, cancel := context.WithTimeout(c.ctx, c.hub.opts.WriteTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				c.cancel()
				return
			}
		}
	}
}

// keepalive pings the peer every PingInterval and closes the connection with
// chat.CloseUnauthorized once the access token expires.
func (c *Client) keepalive() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer ticker.Stop()

	var expired <-chan time.Time
	if c.claims.ExpiresAt != nil {
		timer := time.NewTimer(time.Until(c.claims.ExpiresAt.Time))
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-expired:
			c.closeWith(websocket.StatusCode(chat.CloseUnauthorized), "token expired")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, c.hub.opts.PongTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.closeWith(websocket.StatusGoingAway, "keepalive timeout")
				return
			}
		}
	}
}

// deliver queues a broadcast frame, holding it back until the history frame
// has been queued.
func (c *Client) deliver(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		c.backlog = append(c.backlog, data)
		return
	}
	c.enqueueLocked(data)
}

func (c *Client) sendError(msg string) {
	data, err := json.Marshal(chat.Frame{Type: chat.FrameError, Error: msg})
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueueLocked(data)
}

// enqueueLocked closes a client whose queue is full; it reconnects and
// refetches the history instead of missing frames.
func (c *Client) enqueueLocked(data []byte) {
	select {
	case c.send <- data:
	default:
		c.closeLocked(websocket.StatusTryAgainLater, "client too slow")
	}
}

func (c *Client) closeWith(code websocket.StatusCode, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked(code, reason)
}

func (c *Client) closeLocked(code websocket.StatusCode, reason string) {
	if c.ctx.Err() == nil {
		c.closeCode, c.closeReason = code, reason
	}
	c.cancel()
}
