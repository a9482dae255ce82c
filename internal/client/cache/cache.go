// Package cache persists the Reconciled View between runs. It is a warm start
// only: whatever it returns is merged through the reconciliation engine, so
// the cache never overrides server data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/chat"
)

// MessagesKey is the storage key of the serialized view.
const MessagesKey = "chat_messages"

// KV is the byte store the cache writes to. Get returns (nil, nil) when the
// key is absent. Both metadata.SQLiteRepository and pebblekv.Store satisfy it.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type Cache struct {
	kv  KV
	key string
}

func New(kv KV) *Cache {
	return &Cache{kv: kv, key: MessagesKey}
}

// Save replaces the stored view with msgs.
func (c *Cache) Save(ctx context.Context, msgs []chat.Message) error {
	if msgs == nil {
		msgs = []chat.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode cached messages: %w", err)
	}
	if err := c.kv.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("save cached messages: %w", err)
	}
	return nil
}

// Load returns the stored view, or nil when nothing was saved yet.
func (c *Cache) Load(ctx context.Context) ([]chat.Message, error) {
	data, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("load cached messages: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var msgs []chat.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode cached messages: %w", err)
	}
	return msgs, nil
}

// Clear removes the stored view.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.kv.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("clear cached messages: %w", err)
	}
	return nil
}
