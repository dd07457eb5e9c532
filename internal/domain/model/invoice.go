package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the issued financial document for a completed payment.
// Exactly one per payment; the amounts are frozen copies of the payment row
// at issue time.
type Invoice struct {
	ID            string // UUID
	PaymentID     string
	InvoiceNumber string
	Amount        decimal.Decimal // amount before tax
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	Currency      string
	IssuedAt      time.Time
}
