package ports

import (
	"context"
	"time"
)

// Cache is a best-effort key-value store used for read-through lookups.
// Adapters may be backed by SQLite, Redis or nothing at all.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
