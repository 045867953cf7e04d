package ports

import (
	"context"
	"time"
)

// Cache is a small key-value store kept next to the issue tables.
// ctt records the outcome of the last automatic pass in it.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
