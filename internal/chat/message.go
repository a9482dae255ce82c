// Package chat holds the canonical message model shared by the client and the
// relay server, the identity rule used to deduplicate messages, boundary
// normalization of loosely shaped records and the live-channel wire protocol.
package chat

import (
	"errors"
	"strings"
	"time"
)

// Anonymous is shown when a message carries no author.
const Anonymous = "Anonymous"

// TempIDPrefix marks identifiers minted locally for optimistic entries.
const TempIDPrefix = "tmp-"

// Origin records where a view entry came from.
type Origin string

const (
	OriginHistory    Origin = "history"
	OriginLive       Origin = "live"
	OriginOptimistic Origin = "optimistic"
)

// ErrMalformed is returned for records without a body or a timestamp.
var ErrMalformed = errors.New("malformed message")

// Message is the canonical chat message.
type Message struct {
	ID     string    `json:"id,omitempty"`
	Author string    `json:"author"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sentAt"`
	Origin Origin    `json:"origin,omitempty"`
}

// Validate reports ErrMalformed when the message cannot enter a view.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Body) == "" {
		return errors.Join(ErrMalformed, errors.New("empty body"))
	}
	if m.SentAt.IsZero() {
		return errors.Join(ErrMalformed, errors.New("missing sentAt"))
	}
	return nil
}

// HasStableID reports whether ID was assigned by the server.
func (m Message) HasStableID() bool {
	return m.ID != "" && m.Origin != OriginOptimistic && !strings.HasPrefix(m.ID, TempIDPrefix)
}

// IsOptimistic reports whether the entry is a local, unconfirmed send.
func (m Message) IsOptimistic() bool {
	return m.Origin == OriginOptimistic
}

// DisplayAuthor returns the author or the Anonymous placeholder.
func (m Message) DisplayAuthor() string {
	if strings.TrimSpace(m.Author) == "" {
		return Anonymous
	}
	return m.Author
}
