package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"nhooyr.io/websocket"

	"github.com/dmitrijs2005/gophchat/internal/chat"
	"github.com/dmitrijs2005/gophchat/internal/client/client"
	"github.com/dmitrijs2005/gophchat/internal/common"
)

// ChatPath is the live channel namespace on the relay.
const ChatPath = "/ws/chat"

const defaultReadLimit = 1 << 20

// WSTransport dials the relay's WebSocket endpoint, passing the bearer token
// in the Authorization header.
type WSTransport struct {
	url        string
	httpClient *http.Client
	readLimit  int64
}

// NewWSTransport derives the WebSocket URL from the relay's HTTP base URL.
func NewWSTransport(serverURL string, httpClient *http.Client) (*WSTransport, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + ChatPath

	return &WSTransport{url: u.String(), httpClient: httpClient, readLimit: defaultReadLimit}, nil
}

func (t *WSTransport) URL() string { return t.url }

func (t *WSTransport) Dial(ctx context.Context, token string) (Channel, error) {
	opts := &websocket.DialOptions{
		HTTPClient: t.httpClient,
		HTTPHeader: http.Header{
			common.AuthorizationHeaderName: []string{common.BearerPrefix + token},
		},
	}

	c, resp, err := websocket.Dial(ctx, t.url, opts) //nolint:bodyclose // websocket.Dial closes the response body
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: dial %s: %s", client.ErrUnauthorized, t.url, resp.Status)
		}
		return nil, fmt.Errorf("%w: dial %s: %w", client.ErrNetwork, t.url, err)
	}
	c.SetReadLimit(t.readLimit)

	return &wsChannel{conn: c}, nil
}

type wsChannel struct {
	conn *websocket.Conn
}

func (c *wsChannel) Read(ctx context.Context) (chat.Frame, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return chat.Frame{}, classifyClose(err)
	}
	if typ != websocket.MessageText {
		return chat.Frame{}, fmt.Errorf("%w: unexpected message type %v", ErrBadFrame, typ)
	}

	var f chat.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return chat.Frame{}, fmt.Errorf("%w: %w", ErrBadFrame, err)
	}
	return f, nil
}

func (c *wsChannel) Write(ctx context.Context, f chat.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsChannel) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return nil
	}
	return err
}

func classifyClose(err error) error {
	switch websocket.CloseStatus(err) {
	case websocket.StatusCode(chat.CloseUnauthorized):
		return fmt.Errorf("%w: %w", client.ErrUnauthorized, err)
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return fmt.Errorf("%w: %w", ErrServerClosed, err)
	default:
		return err
	}
}
