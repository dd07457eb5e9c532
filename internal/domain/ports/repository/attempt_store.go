package repository

import (
	"context"
	"time"
)

// AttemptStore is the ephemeral TTL key-value store backing rate limiting
// and lockouts. Redis in production, an in-memory fake in tests.
//
// Incr is at-least-once under retry: double-counting only ever biases
// toward a stricter lockout, never a laxer one.
type AttemptStore interface {
	// Get returns the counter value, or 0 if the key is absent/expired.
	Get(ctx context.Context, key string) (int, error)
	// Incr increments and resets the key's expiry to ttl; returns new value.
	Incr(ctx context.Context, key string, ttl time.Duration) (int, error)
	Del(ctx context.Context, key string) error
	// SetWithTTL stores an absolute value with its own expiry (lockout flag).
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// GetString returns ("", nil) when the key is absent or expired.
	GetString(ctx context.Context, key string) (string, error)
	// TTL returns the remaining lifetime, zero when absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
}
