package chat

import "time"

// DefaultTolerance is the SentAt window inside which two id-less messages
// with equal author and body are considered the same message.
const DefaultTolerance = 3 * time.Second

// SameID reports whether both messages carry identical non-empty ids. It
// covers both server ids and temporary ids of optimistic entries.
func SameID(a, b Message) bool {
	return a.ID != "" && a.ID == b.ID
}

// SameMessage applies the identity rule:
//   - equal ids always mean the same message;
//   - two different server ids never do;
//   - two optimistic entries are only equal by temporary id;
//   - otherwise author, body and SentAt (within tolerance) must all agree.
func SameMessage(a, b Message, tolerance time.Duration) bool {
	if SameID(a, b) {
		return true
	}
	if a.HasStableID() && b.HasStableID() {
		return false
	}
	if a.IsOptimistic() && b.IsOptimistic() {
		return false
	}
	if a.DisplayAuthor() != b.DisplayAuthor() || a.Body != b.Body {
		return false
	}
	d := a.SentAt.Sub(b.SentAt)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
