package repository

import (
	"context"
	"time"
)

// StateStore abstracts ephemeral key-value state: lottery sessions and scope locks.
// Implementations: Redis (production, shared across instances) or in-memory
// (local dev / single instance).
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Extend resets the TTL of key only while it still holds value.
	Extend(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// CompareAndDelete removes key only while it still holds value.
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)
}
