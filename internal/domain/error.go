package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// OTP verification rejections
	ErrCodeInvalidFormat   = errors.New("code has invalid format")
	ErrCodeAlreadyUsed     = errors.New("code already used")
	ErrCodeExpired         = errors.New("code expired")
	ErrMaxAttemptsExceeded = errors.New("maximum verification attempts exceeded")
	ErrRateLimited         = errors.New("too many attempts, rate limited")
	ErrLockedOut           = errors.New("verification locked out")
	ErrCodeMismatch        = errors.New("code does not match")

	// Payment validation
	ErrAmountOutOfRange  = errors.New("payment amount out of allowed range")
	ErrUnsupportedCard   = errors.New("unsupported card brand")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrPaymentNotPending = errors.New("payment is not pending")
)

// CodeMismatchError carries the attempts left after a wrong submission.
// It unwraps to ErrCodeMismatch so callers can errors.Is against the sentinel.
type CodeMismatchError struct {
	AttemptsRemaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("code does not match (%d attempts remaining)", e.AttemptsRemaining)
}

func (e *CodeMismatchError) Unwrap() error { return ErrCodeMismatch }

// LockoutError carries the remaining cooldown for a locked identifier.
type LockoutError struct {
	SecondsRemaining int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("locked out for %d more seconds", e.SecondsRemaining)
}

func (e *LockoutError) Unwrap() error { return ErrLockedOut }

// GatewayErrorKind classifies provider failures into the bounded set the
// rest of the system is allowed to see. Raw provider messages stay server-side.
type GatewayErrorKind string

const (
	GatewayErrCardDeclined   GatewayErrorKind = "card_declined"
	GatewayErrRateLimited    GatewayErrorKind = "rate_limited"
	GatewayErrInvalidRequest GatewayErrorKind = "invalid_request"
	GatewayErrAuth           GatewayErrorKind = "auth"
	GatewayErrConnection     GatewayErrorKind = "connection"
	GatewayErrUnknown        GatewayErrorKind = "unknown"
)

// GatewayError is decoded exactly once at the gateway boundary; use-case and
// handler code switch on Kind, never on provider text.
type GatewayError struct {
	Kind    GatewayErrorKind
	Message string // provider detail, logged but never shown to callers
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (%s): %s", e.Kind, e.Message)
}

// AsGatewayError returns the *GatewayError in err's chain, if any.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
