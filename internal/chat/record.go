package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Alternative spellings accepted for each canonical field, in priority order.
var (
	idKeys     = []string{"id", "_id", "messageId"}
	authorKeys = []string{"author", "username", "user", "sender"}
	bodyKeys   = []string{"body", "text", "message", "content"}
	sentAtKeys = []string{"sentAt", "timestamp", "createdAt", "ts"}
)

// DecodeRecord normalizes one loosely shaped JSON record into a Message with
// the given origin. Ids may be strings or numbers, timestamps RFC 3339 text or
// epoch milliseconds, and the author may be a string or an object with a
// username/name field. Records without a body or timestamp yield ErrMalformed.
func DecodeRecord(raw json.RawMessage, origin Origin) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	m := Message{Origin: origin}

	if v, ok := first(fields, idKeys); ok {
		id, err := decodeID(v)
		if err != nil {
			return Message{}, fmt.Errorf("%w: id: %v", ErrMalformed, err)
		}
		m.ID = id
	}

	if v, ok := first(fields, authorKeys); ok {
		m.Author = decodeAuthor(v)
	}
	if strings.TrimSpace(m.Author) == "" {
		m.Author = Anonymous
	}

	if v, ok := first(fields, bodyKeys); ok {
		var body string
		if err := json.Unmarshal(v, &body); err != nil {
			return Message{}, fmt.Errorf("%w: body: %v", ErrMalformed, err)
		}
		m.Body = body
	}

	if v, ok := first(fields, sentAtKeys); ok {
		ts, err := decodeTime(v)
		if err != nil {
			return Message{}, fmt.Errorf("%w: sentAt: %v", ErrMalformed, err)
		}
		m.SentAt = ts
	}

	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// DecodeRecords normalizes a batch, returning the well-formed messages and
// the number of records that were dropped.
func DecodeRecords(raws []json.RawMessage, origin Origin) ([]Message, int) {
	out := make([]Message, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		m, err := DecodeRecord(raw, origin)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, m)
	}
	return out, dropped
}

func first(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if ok && len(v) > 0 && !bytes.Equal(v, []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

func decodeID(v json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func decodeAuthor(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Username string `json:"username"`
		Name     string `json:"name"`
	}
	if err := json.Unmarshal(v, &obj); err == nil {
		if obj.Username != "" {
			return obj.Username
		}
		return obj.Name
	}
	return ""
}

// maxEpochMillis bounds numeric timestamps to the range a float64 holds
// exactly.
const maxEpochMillis = 1 << 53

func decodeTime(v json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochMillis(float64(ms))
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	var ms float64
	if err := json.Unmarshal(v, &ms); err != nil {
		return time.Time{}, err
	}
	return epochMillis(ms)
}

func epochMillis(ms float64) (time.Time, error) {
	if math.IsNaN(ms) || ms > maxEpochMillis || ms < -maxEpochMillis {
		return time.Time{}, fmt.Errorf("epoch milliseconds %v out of range", ms)
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}
