package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"course-payment-portal/internal/domain"
	"course-payment-portal/internal/domain/model"
	"course-payment-portal/internal/domain/ports/repository"
)

var _ repository.InvoiceRepository = (*invoiceRepo)(nil)

type invoiceRepo struct{ pool *pgxpool.Pool }

func NewInvoiceRepo(pool *pgxpool.Pool) *invoiceRepo {
	return &invoiceRepo{pool: pool}
}

func (r *invoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	// One invoice per payment; re-finalizing must not issue a second one.
	const q = `
INSERT INTO invoices (id, payment_id, invoice_number, amount, tax_amount, total_amount, currency, issued_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (payment_id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q,
		inv.ID, inv.PaymentID, inv.InvoiceNumber,
		inv.Amount.String(), inv.TaxAmount.String(), inv.TotalAmount.String(),
		inv.Currency, inv.IssuedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *invoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	const q = `
SELECT id, payment_id, invoice_number, amount::text, tax_amount::text, total_amount::text, currency, issued_at
FROM invoices WHERE payment_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	inv := &model.Invoice{}
	var amount, taxAmount, totalAmount string
	if err := row.Scan(&inv.ID, &inv.PaymentID, &inv.InvoiceNumber,
		&amount, &taxAmount, &totalAmount, &inv.Currency, &inv.IssuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if inv.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if inv.TaxAmount, err = decimal.NewFromString(taxAmount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if inv.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return inv, nil
}
