package ratelimiter

import (
	"context"
	"time"
)

// Store persists bucket state. Implementations must apply refill and
// consumption atomically per key.
type Store interface {
	// ConsumeTokens refills the bucket for key, subtracts tokens and
	// reports the remainder together with the next refill time.
	// A negative remainder means the request must be denied.
	ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (remaining int, resetAt time.Time, err error)

	// Reset clears the state for key.
	Reset(ctx context.Context, key string) error
}
