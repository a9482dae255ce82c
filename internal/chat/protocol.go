package chat

import (
	"encoding/json"
	"time"
)

// Live-channel frame types.
const (
	FrameSend    = "send"
	FrameHistory = "history"
	FrameMessage = "message"
	FrameError   = "error"
	FrameCleared = "cleared"
)

// CloseUnauthorized is the WebSocket close code the relay uses when the
// credential is rejected or expires on an open connection.
const CloseUnauthorized = 4401

// Frame is the JSON envelope exchanged over the live channel. Records are kept
// raw so that each side normalizes them with DecodeRecord.
type Frame struct {
	Type     string            `json:"type"`
	Body     string            `json:"body,omitempty"`
	Author   string            `json:"author,omitempty"`
	Message  json.RawMessage   `json:"message,omitempty"`
	Messages []json.RawMessage `json:"messages,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Record is the canonical wire shape of a stored message.
type Record struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Body   string `json:"body"`
	SentAt string `json:"sentAt"`
}

// ToRecord renders m in the canonical wire shape with millisecond precision.
func ToRecord(m Message) Record {
	return Record{
		ID:     m.ID,
		Author: m.DisplayAuthor(),
		Body:   m.Body,
		SentAt: m.SentAt.UTC().Format(timeLayout),
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// EncodeRecords marshals messages into raw records for a frame or page.
func EncodeRecords(msgs []Message) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(ToRecord(m))
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Truncate drops sub-millisecond precision so that values survive a wire
// round trip unchanged.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
