package security

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"course-payment-portal/internal/domain/ports/repository"
)

const (
	DefaultCodeLength      = 6
	DefaultExpiryWindow    = 10 * time.Minute
	DefaultMaxAttempts     = 3
	DefaultLockoutDuration = 15 * time.Minute
)

// OTPManager is the policy layer over one-time codes: generation, format
// checks, time arithmetic, and the rate-limit/lockout counters held in the
// injected TTL store. It never touches payment or OTP rows.
type OTPManager struct {
	store       repository.AttemptStore
	codeLength  int
	window      time.Duration
	maxAttempts int
	lockoutFor  time.Duration
}

type OTPOption func(*OTPManager)

func WithCodeLength(n int) OTPOption {
	return func(m *OTPManager) {
		if n > 0 {
			m.codeLength = n
		}
	}
}

func WithExpiryWindow(d time.Duration) OTPOption {
	return func(m *OTPManager) {
		if d > 0 {
			m.window = d
		}
	}
}

func WithMaxAttempts(n int) OTPOption {
	return func(m *OTPManager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

func WithLockoutDuration(d time.Duration) OTPOption {
	return func(m *OTPManager) {
		if d > 0 {
			m.lockoutFor = d
		}
	}
}

func NewOTPManager(store repository.AttemptStore, opts ...OTPOption) *OTPManager {
	m := &OTPManager{
		store:       store,
		codeLength:  DefaultCodeLength,
		window:      DefaultExpiryWindow,
		maxAttempts: DefaultMaxAttempts,
		lockoutFor:  DefaultLockoutDuration,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *OTPManager) CodeLength() int           { return m.codeLength }
func (m *OTPManager) MaxAttempts() int          { return m.maxAttempts }
func (m *OTPManager) Window() time.Duration     { return m.window }
func (m *OTPManager) LockoutFor() time.Duration { return m.lockoutFor }

// GenerateCode produces a fixed-length digit code from crypto/rand.
func (m *OTPManager) GenerateCode() (string, error) {
	var b strings.Builder
	b.Grow(m.codeLength)
	for i := 0; i < m.codeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// ValidateFormat reports whether candidate, after trimming, is exactly the
// configured length and all digits.
func (m *OTPManager) ValidateFormat(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if len(candidate) != m.codeLength {
		return false
	}
	for _, r := range candidate {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func attemptsKey(identifier string) string { return "otp_attempts:" + identifier }
func lockoutKey(identifier string) string  { return "otp_lockout:" + identifier }

// CheckRateLimit reads the failed-attempt counter for identifier.
func (m *OTPManager) CheckRateLimit(ctx context.Context, identifier string) (allowed bool, remaining int, err error) {
	attempts, err := m.store.Get(ctx, attemptsKey(identifier))
	if err != nil {
		return false, 0, fmt.Errorf("rate limit read: %w", err)
	}
	if attempts >= m.maxAttempts {
		return false, 0, nil
	}
	return true, m.maxAttempts - attempts, nil
}

// RecordAttempt clears the counter on success, increments it on failure.
func (m *OTPManager) RecordAttempt(ctx context.Context, identifier string, success bool) error {
	key := attemptsKey(identifier)
	if success {
		return m.store.Del(ctx, key)
	}
	_, err := m.store.Incr(ctx, key, m.window)
	return err
}

// IsLockedOut checks the lockout flag; an expired flag reads as not locked.
func (m *OTPManager) IsLockedOut(ctx context.Context, identifier string) (locked bool, secondsRemaining int, err error) {
	key := lockoutKey(identifier)
	v, err := m.store.GetString(ctx, key)
	if err != nil {
		return false, 0, fmt.Errorf("lockout read: %w", err)
	}
	if v == "" {
		return false, 0, nil
	}
	ttl, err := m.store.TTL(ctx, key)
	if err != nil {
		return false, 0, fmt.Errorf("lockout ttl: %w", err)
	}
	if ttl <= 0 {
		_ = m.store.Del(ctx, key)
		return false, 0, nil
	}
	return true, int(ttl.Seconds()), nil
}

// Lockout sets the lockout flag for the configured duration.
func (m *OTPManager) Lockout(ctx context.Context, identifier string) error {
	return m.store.SetWithTTL(ctx, lockoutKey(identifier), "1", m.lockoutFor)
}

// ExpiryOf is pure time arithmetic off the configured window.
func (m *OTPManager) ExpiryOf(createdAt time.Time) time.Time {
	return createdAt.Add(m.window)
}

// IsExpired reports whether a code created at createdAt is past its window.
func (m *OTPManager) IsExpired(createdAt time.Time, now time.Time) bool {
	return now.After(m.ExpiryOf(createdAt))
}
