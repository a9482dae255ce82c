// Package history owns the Page Cursor of the History Fetcher and the
// bounded-wait fetch helper the session uses to read pages.
package history

// Request describes one page read issued against a cursor.
type Request struct {
	Page int
	Size int
	// Refresh requests re-read page 1 without moving the cursor, e.g. after a
	// reconnect.
	Refresh bool

	gen uint64
}

// Cursor tracks how far back the view has been backfilled. Page is the last
// successfully loaded page (0 before the first), Total the page count reported
// by the server (0 until known). It is not safe for concurrent use; the
// session loop is its only writer.
type Cursor struct {
	Page    int
	Size    int
	Total   int
	Loading bool

	known bool
	gen   uint64
}

func NewCursor(size int) *Cursor {
	if size < 1 {
		size = 1
	}
	return &Cursor{Size: size}
}

// Known reports whether a response has reported the page count yet.
func (c *Cursor) Known() bool { return c.known }

// Exhausted reports whether every page has been loaded.
func (c *Cursor) Exhausted() bool {
	return c.known && c.Page >= c.Total
}

// Next starts loading the next older page. It returns false, and changes
// nothing, when a load is already outstanding or the history is exhausted.
func (c *Cursor) Next() (Request, bool) {
	if c.Loading || c.Exhausted() {
		return Request{}, false
	}
	c.Loading = true
	return Request{Page: c.Page + 1, Size: c.Size, gen: c.gen}, true
}

// Refresh returns a request for page 1 that leaves Loading untouched.
func (c *Cursor) Refresh() Request {
	return Request{Page: 1, Size: c.Size, Refresh: true, gen: c.gen}
}

// Complete records a successful response. It returns false when the request
// was issued before the last Reset; such results must not be applied.
func (c *Cursor) Complete(req Request, totalPages int) bool {
	if req.gen != c.gen {
		return false
	}
	if !req.Refresh {
		c.Loading = false
	}
	if req.Page > c.Page {
		c.Page = req.Page
	}
	if totalPages < 0 {
		totalPages = 0
	}
	c.Total = totalPages
	c.known = true
	return true
}

// Fail records a failed response. The cursor does not advance so the same
// page is retried by the next Next.
func (c *Cursor) Fail(req Request) bool {
	if req.gen != c.gen {
		return false
	}
	if !req.Refresh {
		c.Loading = false
	}
	return true
}

// Reset returns the cursor to its initial state and invalidates every
// outstanding request.
func (c *Cursor) Reset() {
	c.gen++
	c.Page = 0
	c.Total = 0
	c.Loading = false
	c.known = false
}
