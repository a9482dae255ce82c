// Package messages stores the relay's shared chat history.
package messages

import (
	"context"

	"github.com/dmitrijs2005/gophchat/internal/chat"
)

// Repository is the durable history log. Pages are counted from the newest
// message: page 1 holds the latest limit messages. Every method returns
// messages in ascending (sentAt, id) order.
type Repository interface {
	Insert(ctx context.Context, m chat.Message) error
	Page(ctx context.Context, page, limit int) ([]chat.Message, error)
	Count(ctx context.Context) (int, error)
	All(ctx context.Context) ([]chat.Message, error)
	// Clear deletes the whole history and reports how many rows were removed.
	Clear(ctx context.Context) (int64, error)
}
