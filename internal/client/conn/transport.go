package conn

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophchat/internal/chat"
)

var (
	// ErrServerClosed is returned by Channel.Read when the server closed the
	// session normally.
	ErrServerClosed = errors.New("closed by server")
	// ErrBadFrame is returned by Channel.Read for an undecodable frame. The
	// channel stays usable.
	ErrBadFrame = errors.New("bad frame")
)

// Transport opens live channels. Dial fails with client.ErrUnauthorized when
// the credential is rejected and with client.ErrNetwork otherwise.
type Transport interface {
	Dial(ctx context.Context, token string) (Channel, error)
}

// Channel is one open duplex connection. Read is called from a single
// goroutine; Write and Close may be called concurrently with it.
//
// Read errors are classified: client.ErrUnauthorized for a rejected
// credential, ErrServerClosed for a normal server close, ErrBadFrame for a
// skipped frame, anything else counts as a network failure.
type Channel interface {
	Read(ctx context.Context) (chat.Frame, error)
	Write(ctx context.Context, f chat.Frame) error
	Close() error
}
