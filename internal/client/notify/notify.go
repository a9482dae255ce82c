// Package notify holds user-displayable notifications. Each one expires a
// fixed time after it was raised.
package notify

import (
	"sync"
	"time"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 5 * time.Second

type Code string

const (
	TokenNotFound       Code = "TOKEN_NOT_FOUND"
	SessionExpired      Code = "SESSION_EXPIRED"
	LoadMessagesFailed  Code = "LOAD_MESSAGES_FAILED"
	ClearMessagesFailed Code = "CLEAR_MESSAGES_FAILED"
	SendMessageFailed   Code = "SEND_MESSAGE_FAILED"
	NotConnected        Code = "NOT_CONNECTED"
	EmptyMessage        Code = "EMPTY_MESSAGE"
	ConnectFailed       Code = "CONNECT_FAILED"
	UnexpectedError     Code = "UNEXPECTED_ERROR"
)

var texts = map[Code]string{
	TokenNotFound:       "Authentication token not found. Please log in again.",
	SessionExpired:      "Session expired. Please log in again.",
	LoadMessagesFailed:  "Failed to load messages.",
	ClearMessagesFailed: "Failed to clear messages.",
	SendMessageFailed:   "Failed to send message. Please try again.",
	NotConnected:        "Not connected to chat. Please check your connection.",
	EmptyMessage:        "Message cannot be empty.",
	ConnectFailed:       "Failed to connect to chat. Please try again later.",
	UnexpectedError:     "An unexpected error occurred.",
}

// Text returns the user-facing text for code.
func Text(code Code) string {
	if t, ok := texts[code]; ok {
		return t
	}
	return texts[UnexpectedError]
}

type Notification struct {
	ID        uint64
	Code      Code
	Text      string
	Detail    string
	RaisedAt  time.Time
	ExpiresAt time.Time
}

// Center keeps the active notifications, oldest first.
type Center struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	nextID uint64
	items  []Notification
}

// NewCenter returns a Center; a nil clock means time.Now.
func NewCenter(ttl time.Duration, now func() time.Time) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Center{ttl: ttl, now: now}
}

// Push raises a notification. detail is optional extra context, such as an
// error string from the server.
func (c *Center) Push(code Code, detail string) Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.nextID++
	n := Notification{
		ID:        c.nextID,
		Code:      code,
		Text:      Text(code),
		Detail:    detail,
		RaisedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.pruneLocked(now)
	c.items = append(c.items, n)
	return n
}

// Active returns the notifications that have not expired.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.now())
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// NextExpiry returns when the oldest active notification expires.
func (c *Center) NextExpiry() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.now())
	if len(c.items) == 0 {
		return time.Time{}, false
	}
	return c.items[0].ExpiresAt, true
}

func (c *Center) Dismiss(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

func (c *Center) pruneLocked(now time.Time) {
	keep := c.items[:0]
	for _, n := range c.items {
		if now.Before(n.ExpiresAt) {
			keep = append(keep, n)
		}
	}
	c.items = keep
}
