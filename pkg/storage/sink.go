// Package storage holds the blob sinks that persist embedded store snapshots.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no blob exists under the key.
var ErrNotFound = errors.New("snapshot not found")

// Sink persists opaque blobs under string keys.
type Sink interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}
