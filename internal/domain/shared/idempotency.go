package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers already-handled operation keys so replays can
// be absorbed. Used to dedupe OAuth callback deliveries, which browsers
// and banks are both happy to repeat.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already
	// present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close releases any resources held by the store
	Close() error
}
