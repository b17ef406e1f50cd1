// Package kvstore provides the shared key-value store that holds the change
// feed cursor and the backfill state, candidate list and counters.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=kvstore.go Store

// ErrNotFound is returned by Get when the key has never been set or was deleted
var ErrNotFound = errors.New("key not found")

// Store is a durable key-value store shared by every process of a deployment
type Store interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the value stored under key
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Incr atomically adds delta to the integer stored under key, treating a
	// missing key as zero, and returns the new value
	Incr(ctx context.Context, key string, delta int64) (int64, error)
}

// GetJSON loads key and unmarshals it into v
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal value of %q: %w", key, err)
	}
	return nil
}

// SetJSON marshals v and stores it under key
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value of %q: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// GetInt reads a counter written by Incr, returning 0 when the key is absent
func GetInt(ctx context.Context, s Store, key string) (int64, error) {
	var n int64
	err := GetJSON(ctx, s, key, &n)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	return n, err
}
