package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"    // intent created, awaiting OTP + capture
	PaymentStatusProcessing PaymentStatus = "processing" // gateway confirmation in flight
	PaymentStatusCompleted  PaymentStatus = "completed"  // captured; invoice assigned
	PaymentStatusFailed     PaymentStatus = "failed"     // explicitly failed
	PaymentStatusCancelled  PaymentStatus = "cancelled"  // staff/student cancel
)

// Payment records one purchase attempt against one course enrollment.
// Financial record: never deleted by the normal flow.
type Payment struct {
	ID             string // UUID
	RegistrationID string // owning student registration
	EnrollmentID   string // course enrollment being paid for
	CourseName     string // denormalized at creation time

	TotalPrice    decimal.Decimal // full course price (CAD)
	PaymentAmount decimal.Decimal // amount paid now
	TaxAmount     decimal.Decimal // frozen at creation, not re-derived
	FinalAmount   decimal.Decimal // PaymentAmount + TaxAmount
	Currency      string

	Status        PaymentStatus
	PaymentMethod string // e.g. "visa"
	CardHolder    string
	CardLastFour  string // last 4 digits only; full PAN is never stored
	Email         string

	IntentID      string // provider payment intent id
	ChargeID      string // provider charge id, set on capture
	CustomerID    string // provider customer id
	TransactionID string // internal opaque id, globally unique
	InvoiceNumber string // assigned exactly once, on completion

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// TaxFor computes the tax for an amount at the given rate,
// rounded half-up at the cent.
func TaxFor(amount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

// MinorUnits converts a 2dp decimal amount to integer cents for the gateway.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
