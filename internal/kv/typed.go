package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// GetAs retrieves key and unmarshals it into T.
// Returns the zero value and false if the key is missing or expired.
func GetAs[T any](ctx context.Context, s *Store, key string) (value T, ok bool, err error) {
	raw, ok, err := s.getRaw(ctx, key)
	if err != nil || !ok {
		return value, false, err
	}

	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return value, false, fmt.Errorf("%w: failed to unmarshal value for key %q: %w", ErrSerialization, key, err)
	}
	return value, true, nil
}

// Typed wraps Store with JSON marshaling for a specific type.
type Typed[T any] struct {
	store *Store
}

// NewTyped creates a typed view over the store.
func NewTyped[T any](store *Store) *Typed[T] {
	return &Typed[T]{store: store}
}

// Get retrieves and unmarshals the value for key.
func (t *Typed[T]) Get(ctx context.Context, key string) (T, bool, error) {
	return GetAs[T](ctx, t.store, key)
}

// Set stores the value for key without expiry.
func (t *Typed[T]) Set(ctx context.Context, key string, value T) error {
	return t.store.Set(ctx, key, value)
}

// SetWithTTL stores the value for key with an expiry.
func (t *Typed[T]) SetWithTTL(ctx context.Context, key string, value T, ttl time.Duration) error {
	return t.store.SetWithTTL(ctx, key, value, ttl)
}

// Remove deletes key.
func (t *Typed[T]) Remove(ctx context.Context, key string) error {
	return t.store.Remove(ctx, key)
}
