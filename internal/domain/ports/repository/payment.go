package repository

import (
	"context"
	"time"

	"course-payment-portal/internal/domain/model"
)

// PaymentRepository persists payment rows.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	// FindByID takes a row lock when called inside a transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByIntentID(ctx context.Context, tx Tx, intentID string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus, chargeID *string, completedAt *time.Time) error
	// AssignInvoiceNumber sets the invoice number iff none is set yet;
	// returns the stored value either way.
	AssignInvoiceNumber(ctx context.Context, tx Tx, id string, invoiceNumber string) (string, error)
	// NextInvoiceSeq draws the next value from the invoice sequence.
	NextInvoiceSeq(ctx context.Context, tx Tx) (int64, error)
	List(ctx context.Context, tx Tx, limit, offset int) ([]*model.Payment, error)
	ListVerifiedPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	SumCompletedByPeriod(ctx context.Context, tx Tx, period string) (string, error)
}

// InvoiceRepository persists issued invoices, one per payment.
type InvoiceRepository interface {
	// Save inserts the invoice iff none exists for the payment yet.
	Save(ctx context.Context, tx Tx, inv *model.Invoice) error
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Invoice, error)
}

// OTPRepository persists the one-time codes, one active row per payment.
type OTPRepository interface {
	// Save upserts by payment id, replacing any previous code for that payment.
	Save(ctx context.Context, tx Tx, otp *model.PaymentOTP) error
	// FindByPaymentID takes a row lock when called inside a transaction.
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.PaymentOTP, error)
	// IncrementAttempts durably bumps the counter and returns the new value.
	IncrementAttempts(ctx context.Context, tx Tx, id string) (int, error)
	MarkVerified(ctx context.Context, tx Tx, id string, verifiedAt time.Time) error
}
