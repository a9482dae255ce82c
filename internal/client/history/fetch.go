package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/client/client"
)

// Fetcher reads one page of history. client.HTTPClient implements it.
type Fetcher interface {
	FetchPage(ctx context.Context, page, size int) (client.Page, error)
}

// Result is the completion of a Request.
type Result struct {
	Request Request
	Page    client.Page
	Err     error
}

// Fetch performs req with a bounded wait. A timeout is reported as
// client.ErrNetwork; cancellation of ctx itself is returned unchanged so the
// caller can tell an abandoned fetch from a failed one.
func Fetch(ctx context.Context, f Fetcher, req Request, timeout time.Duration) Result {
	fctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	page, err := f.FetchPage(fctx, req.Page, req.Size)
	if err != nil && ctx.Err() == nil && errors.Is(fctx.Err(), context.DeadlineExceeded) && !errors.Is(err, client.ErrNetwork) {
		err = fmt.Errorf("%w: fetch page %d: %w", client.ErrNetwork, req.Page, err)
	}
	return Result{Request: req, Page: page, Err: err}
}
