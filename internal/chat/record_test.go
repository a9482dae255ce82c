package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord_ShapeVariants(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 0, 0, 250*int(time.Millisecond), time.UTC)

	tests := []struct {
		name   string
		raw    string
		id     string
		author string
		body   string
	}{
		{
			name: "canonical",
			raw:  `{"id":"abc","author":"ann","body":"hi","sentAt":"2024-05-01T12:00:00.250Z"}`,
			id:   "abc", author: "ann", body: "hi",
		},
		{
			name: "legacy text/username/timestamp with numeric id",
			raw:  `{"id":1714564800250,"username":"ann","text":"hi","timestamp":1714564800250}`,
			id:   "1714564800250", author: "ann", body: "hi",
		},
		{
			name: "mongo style with user object",
			raw:  `{"_id":"65f0","user":{"username":"ann"},"message":"hi","createdAt":"2024-05-01T14:00:00.25+02:00"}`,
			id:   "65f0", author: "ann", body: "hi",
		},
		{
			name: "missing author",
			raw:  `{"id":"x","content":"hi","ts":"1714564800250"}`,
			id:   "x", author: Anonymous, body: "hi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := DecodeRecord(json.RawMessage(tt.raw), OriginHistory)
			require.NoError(t, err)
			assert.Equal(t, tt.id, m.ID)
			assert.Equal(t, tt.author, m.Author)
			assert.Equal(t, tt.body, m.Body)
			assert.True(t, want.Equal(m.SentAt), "got %s", m.SentAt)
			assert.Equal(t, OriginHistory, m.Origin)
		})
	}
}

func TestDecodeRecord_Malformed(t *testing.T) {
	tests := map[string]string{
		"no body":        `{"id":"1","author":"ann","sentAt":"2024-05-01T12:00:00Z"}`,
		"blank body":     `{"id":"1","author":"ann","body":"  ","sentAt":"2024-05-01T12:00:00Z"}`,
		"no timestamp":   `{"id":"1","author":"ann","body":"hi"}`,
		"bad timestamp":  `{"id":"1","author":"ann","body":"hi","sentAt":"yesterday"}`,
		"not an object":  `["hi"]`,
		"body not text":  `{"body":42,"sentAt":"2024-05-01T12:00:00Z"}`,
		"null timestamp": `{"body":"hi","sentAt":null}`,
		"huge epoch":     `{"body":"hi","sentAt":1e300}`,
		"huge negative":  `{"body":"hi","sentAt":-1e17}`,
		"huge as text":   `{"body":"hi","sentAt":"9223372036854775807"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecord(json.RawMessage(raw), OriginLive)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeRecords_CountsDropped(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"id":"1","body":"a","sentAt":"2024-05-01T12:00:00Z"}`),
		json.RawMessage(`{"id":"2","sentAt":"2024-05-01T12:00:01Z"}`),
		json.RawMessage(`{"id":"3","body":"c","sentAt":"2024-05-01T12:00:02Z"}`),
	}
	msgs, dropped := DecodeRecords(raws, OriginHistory)
	assert.Equal(t, 1, dropped)
	require.Len(t, msgs, 2)
	assert.Equal(t, "1", msgs[0].ID)
	assert.Equal(t, "3", msgs[1].ID)
}

func TestToRecord_RoundTripsThroughDecode(t *testing.T) {
	m := Message{ID: "9", Author: "ann", Body: "hi", SentAt: Truncate(time.Now()), Origin: OriginLive}
	raws, err := EncodeRecords([]Message{m})
	require.NoError(t, err)

	got, err := DecodeRecord(raws[0], OriginLive)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.True(t, m.SentAt.Equal(got.SentAt))
}
