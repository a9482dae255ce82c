// Package reconcile maintains the Reconciled View: the single ordered,
// deduplicated sequence of chat messages a session shows.
//
// The view is not safe for concurrent use. It is owned by one session event
// loop; readers receive copies through Snapshot.
package reconcile

import (
	"sort"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/chat"
)

// Result describes what a single Merge did.
type Result int

const (
	// Skipped means an equivalent entry was already present.
	Skipped Result = iota
	// Inserted means the message was added as a new entry.
	Inserted
	// Upgraded means an optimistic entry was confirmed by the incoming one.
	Upgraded
)

// Changed reports whether the merge modified the view.
func (r Result) Changed() bool { return r != Skipped }

// View is an append-only, SentAt-ordered set of messages.
type View struct {
	tolerance time.Duration
	messages  []chat.Message
}

// NewView returns an empty view using tolerance for id-less matching.
// A non-positive tolerance selects chat.DefaultTolerance.
func NewView(tolerance time.Duration) *View {
	if tolerance <= 0 {
		tolerance = chat.DefaultTolerance
	}
	return &View{tolerance: tolerance}
}

func (v *View) Len() int { return len(v.messages) }

// Snapshot returns a copy of the entries in display order.
func (v *View) Snapshot() []chat.Message {
	out := make([]chat.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Clear empties the view. It is the only way entries leave it.
func (v *View) Clear() {
	v.messages = nil
}

// Merge inserts m unless an equivalent entry exists. Malformed messages are
// rejected with chat.ErrMalformed and never inserted.
//
// An optimistic entry matched by a history or live counterpart takes the
// counterpart's id, timestamp and origin in place. A locally created
// optimistic message only ever matches by its temporary id: it is new by
// construction.
func (v *View) Merge(m chat.Message) (Result, error) {
	if err := m.Validate(); err != nil {
		return Skipped, err
	}
	if m.Author == "" {
		m.Author = chat.Anonymous
	}

	i := v.find(m)
	if i < 0 {
		v.insert(m)
		return Inserted, nil
	}

	existing := v.messages[i]
	if !existing.IsOptimistic() || m.IsOptimistic() {
		return Skipped, nil
	}

	v.upgrade(i, m)
	return Upgraded, nil
}

// MergeAll merges a batch and reports how many entries changed. Malformed
// members are counted in dropped.
func (v *View) MergeAll(msgs []chat.Message) (changed, dropped int) {
	for _, m := range msgs {
		res, err := v.Merge(m)
		if err != nil {
			dropped++
			continue
		}
		if res.Changed() {
			changed++
		}
	}
	return changed, dropped
}

// find returns the index of the entry m is the same message as, or -1.
// Exact id matches win over content matches.
func (v *View) find(m chat.Message) int {
	for i := len(v.messages) - 1; i >= 0; i-- {
		if chat.SameID(v.messages[i], m) {
			return i
		}
	}
	if m.IsOptimistic() {
		return -1
	}
	// a confirmed entry carrying exactly this content is the record itself,
	// already merged
	for i := len(v.messages) - 1; i >= 0; i-- {
		e := v.messages[i]
		if e.IsOptimistic() || (e.HasStableID() && m.HasStableID()) {
			continue
		}
		if e.Author == m.Author && e.Body == m.Body && e.SentAt.Equal(m.SentAt) {
			return i
		}
	}
	// prefer confirming a pending optimistic entry over matching a
	// confirmed one with the same content
	match := -1
	for i := len(v.messages) - 1; i >= 0; i-- {
		e := v.messages[i]
		if !chat.SameMessage(e, m, v.tolerance) {
			continue
		}
		if e.IsOptimistic() {
			return i
		}
		if match < 0 {
			match = i
		}
	}
	return match
}

// insert places m after every entry with SentAt <= m.SentAt, which keeps
// equal timestamps in arrival order.
func (v *View) insert(m chat.Message) {
	i := sort.Search(len(v.messages), func(i int) bool {
		return v.messages[i].SentAt.After(m.SentAt)
	})
	v.messages = append(v.messages, chat.Message{})
	copy(v.messages[i+1:], v.messages[i:])
	v.messages[i] = m
}

func (v *View) upgrade(i int, m chat.Message) {
	updated := v.messages[i]
	updated.ID = m.ID
	updated.Origin = m.Origin
	updated.SentAt = m.SentAt
	updated.Author = m.Author

	if v.inOrder(i, updated.SentAt) {
		v.messages[i] = updated
		return
	}
	v.messages = append(v.messages[:i], v.messages[i+1:]...)
	v.insert(updated)
}

func (v *View) inOrder(i int, t time.Time) bool {
	if i > 0 && v.messages[i-1].SentAt.After(t) {
		return false
	}
	if i+1 < len(v.messages) && v.messages[i+1].SentAt.Before(t) {
		return false
	}
	return true
}
