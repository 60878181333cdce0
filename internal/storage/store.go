// Package storage defines the durable key-value port a room persists its
// snapshots through, plus the memory, redis and postgres adapters behind it.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Store is a crash-safe blob store scoped to a single room. Put replaces the
// whole value atomically.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Provider hands out the Store durably associated with a room identity.
type Provider interface {
	Open(roomID string) Store
}
