package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"course-payment-portal/internal/domain/ports/repository"
)

var _ repository.AttemptStore = (*AttemptStore)(nil)

// AttemptStore backs OTP rate limiting and lockouts with Redis TTL keys.
type AttemptStore struct {
	client *Client
}

func NewAttemptStore(client *Client) *AttemptStore {
	return &AttemptStore{client: client}
}

func (s *AttemptStore) Get(ctx context.Context, key string) (int, error) {
	v, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *AttemptStore) Incr(ctx context.Context, key string, ttl time.Duration) (int, error) {
	count, err := s.client.Incr(ctx, key)
	if err != nil {
		return 0, err
	}
	// Reset the window on every failure; biases toward stricter limiting.
	if err := s.client.Expire(ctx, key, ttl); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *AttemptStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key)
}

func (s *AttemptStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl)
}

func (s *AttemptStore) GetString(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (s *AttemptStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key)
	if err != nil {
		return 0, err
	}
	if d < 0 { // -1 no expiry, -2 missing
		return 0, nil
	}
	return d, nil
}
