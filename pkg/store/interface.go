package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// KV is the persistence contract the engine depends on. Implementations
// persist opaque JSON documents under string keys. Absent keys return
// ErrNotFound from Get.
type KV interface {
	// Lifecycle
	Open(ctx context.Context) error
	Close() error

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
