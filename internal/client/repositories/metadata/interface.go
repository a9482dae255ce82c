// Package metadata is the client's small key/value store. The chat cache,
// the signed-in username and the token pair all live here.
package metadata

import (
	"context"
)

// Repository stores opaque byte values by key. Get returns (nil, nil) for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
