package model

import "time"

// PaymentOTP is a single-use numeric secret bound 1:1 to a payment.
// Cascade-deleted with its payment; exactly one row per payment at a time.
type PaymentOTP struct {
	ID         string // UUID
	PaymentID  string // unique
	Code       string // fixed-length digits
	IsVerified bool
	Attempts   int
	IPAddress  string // requester address at creation, audit only
	CreatedAt  time.Time
	ExpiresAt  time.Time
	VerifiedAt *time.Time // set once, on success
}

// Inert reports whether the code can never verify again, regardless of
// what is submitted: already spent or attempt cap reached.
func (o *PaymentOTP) Inert(maxAttempts int) bool {
	return o.IsVerified || o.Attempts >= maxAttempts
}

// Expired reports lazy expiry against the supplied clock value.
func (o *PaymentOTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
