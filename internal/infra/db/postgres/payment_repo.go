package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"course-payment-portal/internal/domain"
	"course-payment-portal/internal/domain/model"
	"course-payment-portal/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, registration_id, enrollment_id, course_name,
total_price::text, payment_amount::text, tax_amount::text, final_amount::text,
currency, status, payment_method, card_holder, card_last_four, email,
intent_id, charge_id, customer_id, transaction_id, invoice_number,
created_at, updated_at, completed_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, registration_id, enrollment_id, course_name,
  total_price, payment_amount, tax_amount, final_amount,
  currency, status, payment_method, card_holder, card_last_four, email,
  intent_id, charge_id, customer_id, transaction_id, invoice_number,
  created_at, updated_at, completed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,NULLIF($19,''),$20,$21,$22
) ON CONFLICT (id) DO UPDATE SET
  status=$10, charge_id=$16, customer_id=$17, updated_at=$21, completed_at=$22;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.RegistrationID, p.EnrollmentID, p.CourseName,
		p.TotalPrice.String(), p.PaymentAmount.String(), p.TaxAmount.String(), p.FinalAmount.String(),
		p.Currency, p.Status, p.PaymentMethod, p.CardHolder, p.CardLastFour, p.Email,
		p.IntentID, p.ChargeID, p.CustomerID, p.TransactionID, p.InvoiceNumber,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE intent_id=$1 LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, intentID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, chargeID *string, completedAt *time.Time) error {
	const q = `UPDATE payments SET status=$2, charge_id=COALESCE($3, charge_id), completed_at=COALESCE($4, completed_at), updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, status, chargeID, completedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) AssignInvoiceNumber(ctx context.Context, tx repository.Tx, id string, invoiceNumber string) (string, error) {
	// COALESCE keeps the first assignment; re-finalizing never renumbers.
	const q = `UPDATE payments SET invoice_number=COALESCE(invoice_number, $2), updated_at=NOW() WHERE id=$1 RETURNING invoice_number;`
	row, err := pickRow(ctx, r.pool, tx, q, id, invoiceNumber)
	if err != nil {
		return "", err
	}
	var stored string
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", domain.ErrReadDatabaseRow
	}
	return stored, nil
}

func (r *paymentRepo) NextInvoiceSeq(ctx context.Context, tx repository.Tx) (int64, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT nextval('invoice_number_seq');`)
	if err != nil {
		return 0, err
	}
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return seq, nil
}

func (r *paymentRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC LIMIT $1 OFFSET $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit, offset)
	if err != nil {
		return nil, mapListErr(err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *paymentRepo) ListVerifiedPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + prefixColumns("p", paymentColumns) + `
FROM payments p
JOIN payment_otps o ON o.payment_id = p.id
WHERE p.status='pending' AND o.is_verified AND p.created_at < $1
ORDER BY p.created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, mapListErr(err)
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *paymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (string, error) {
	const q = `SELECT COALESCE(SUM(final_amount),0)::text FROM payments WHERE status='completed' AND completed_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return "", err
	}
	var sum string
	if err := row.Scan(&sum); err != nil {
		return "", domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var totalPrice, paymentAmount, taxAmount, finalAmount string
	var invoiceNumber *string
	if err := row.Scan(
		&p.ID, &p.RegistrationID, &p.EnrollmentID, &p.CourseName,
		&totalPrice, &paymentAmount, &taxAmount, &finalAmount,
		&p.Currency, &p.Status, &p.PaymentMethod, &p.CardHolder, &p.CardLastFour, &p.Email,
		&p.IntentID, &p.ChargeID, &p.CustomerID, &p.TransactionID, &invoiceNumber,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	var err error
	if p.TotalPrice, err = decimal.NewFromString(totalPrice); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if p.PaymentAmount, err = decimal.NewFromString(paymentAmount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if p.TaxAmount, err = decimal.NewFromString(taxAmount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if p.FinalAmount, err = decimal.NewFromString(finalAmount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if invoiceNumber != nil {
		p.InvoiceNumber = *invoiceNumber
	}
	return p, nil
}

func scanPayments(rows pgx.Rows) ([]*model.Payment, error) {
	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// prefixColumns qualifies every column in a comma-separated list with a
// table alias, so the shared column list works in joined queries.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

func mapListErr(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
		return err
	default:
		return domain.ErrOperationFailed
	}
}
