// Package pebblekv is a Pebble-backed implementation of the client metadata
// store, for setups that prefer an embedded LSM over SQLite.
package pebblekv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// keyPrefix namespaces client keys inside the Pebble keyspace.
const keyPrefix = "kv:"

type Store struct {
	db *pebble.DB
}

// Open creates the directory if needed and opens the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(keyPrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	defer closer.Close()

	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.db.Set([]byte(keyPrefix+key), value, pebble.Sync); err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(keyPrefix+key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (s *Store) List(_ context.Context) (map[string][]byte, error) {
	it, err := s.db.NewIter(prefixBounds())
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	defer it.Close()

	result := make(map[string][]byte)
	for ok := it.First(); ok; ok = it.Next() {
		k := it.Key()
		v := it.Value()
		vb := make([]byte, len(v))
		copy(vb, v)
		result[string(k[len(keyPrefix):])] = vb
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata: %w", err)
	}
	return result, nil
}

func (s *Store) Clear(_ context.Context) error {
	b := prefixBounds()
	if err := s.db.DeleteRange(b.LowerBound, b.UpperBound, pebble.Sync); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

func prefixBounds() *pebble.IterOptions {
	upper := []byte(keyPrefix)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: []byte(keyPrefix), UpperBound: upper}
}
