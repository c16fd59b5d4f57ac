package redis

import (
	"context"
	"time"
)

// Client is the room release view of Redis: per-room snapshot hashes,
// a capped event log and a status cache with expiry.
type Client interface {
	// SetFields writes several hash fields in one round trip
	SetFields(ctx context.Context, key string, values map[string]interface{}) error

	// SetFieldTTL writes one hash field and refreshes the key's TTL atomically
	SetFieldTTL(ctx context.Context, key, field string, value interface{}, ttl time.Duration) error

	// Fields returns every field of a hash
	Fields(ctx context.Context, key string) (map[string]string, error)

	// PushCapped prepends value to a list and keeps at most max entries.
	// max <= 0 leaves the list untrimmed.
	PushCapped(ctx context.Context, key string, value interface{}, max int64) error

	// Newest returns up to n entries from the head of a list
	Newest(ctx context.Context, key string, n int64) ([]string, error)

	// Ping checks the connection to Redis
	Ping(ctx context.Context) error

	// Close closes the Redis connection
	Close() error
}
