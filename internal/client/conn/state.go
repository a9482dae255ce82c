// Package conn is the Connection Manager: it owns the single live channel of a
// client session, reconnects with capped exponential backoff and reports every
// state transition and inbound event on one ordered update stream.
package conn

import (
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/chat"
)

type State int

const (
	Idle State = iota
	Connecting
	Connected
	Disconnected
	Reconnecting
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reason explains a Disconnected or Failed state.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonServer       Reason = "server"
	ReasonClient       Reason = "client"
	ReasonNetwork      Reason = "network"
	ReasonUnauthorized Reason = "unauthorized"
)

type Transition struct {
	From    State
	To      State
	Reason  Reason
	Attempt int
	Err     error
}

type EventKind string

const (
	EventHistory EventKind = "history"
	EventMessage EventKind = "message"
	EventError   EventKind = "error"
	EventCleared EventKind = "cleared"
)

// Event is an inbound frame normalized into canonical messages.
type Event struct {
	Kind     EventKind
	Messages []chat.Message
	// Dropped counts records that failed normalization.
	Dropped int
	Error   string
}

// Update is either a Transition or an Event; exactly one is set.
type Update struct {
	Transition *Transition
	Event      *Event
}

// decodeFrame turns a server frame into an Event. Frames the client does not
// understand report ok == false.
func decodeFrame(f chat.Frame) (ev Event, ok bool) {
	switch f.Type {
	case chat.FrameHistory:
		msgs, dropped := chat.DecodeRecords(f.Messages, chat.OriginHistory)
		return Event{Kind: EventHistory, Messages: msgs, Dropped: dropped}, true
	case chat.FrameMessage:
		m, err := chat.DecodeRecord(f.Message, chat.OriginLive)
		if err != nil {
			return Event{Kind: EventMessage, Dropped: 1}, true
		}
		return Event{Kind: EventMessage, Messages: []chat.Message{m}}, true
	case chat.FrameError:
		return Event{Kind: EventError, Error: f.Error}, true
	case chat.FrameCleared:
		return Event{Kind: EventCleared}, true
	default:
		return Event{}, false
	}
}
