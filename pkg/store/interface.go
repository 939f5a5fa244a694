// Package store provides the key-value storage used to persist SubRelay
// configurations and sessions.
package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned (possibly wrapped) by Get for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// KeyInfo describes one key returned by List.
type KeyInfo struct {
	Name string `json:"name"`
}

// Store is a string key-value store with prefix listing. Values are opaque
// strings; callers serialize records as JSON.
type Store interface {
	// Open initializes and opens the store.
	Open(path string) error

	// Close closes the store and releases resources.
	Close() error

	// Get returns the value stored at key or an error wrapping ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value at key, replacing any previous value.
	Put(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]KeyInfo, error)
}

// IsNotFoundError checks if an error is a missing key error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
