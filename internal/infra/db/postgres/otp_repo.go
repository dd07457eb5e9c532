package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-payment-portal/internal/domain"
	"course-payment-portal/internal/domain/model"
	"course-payment-portal/internal/domain/ports/repository"
)

var _ repository.OTPRepository = (*otpRepo)(nil)

type otpRepo struct{ pool *pgxpool.Pool }

func NewOTPRepo(pool *pgxpool.Pool) *otpRepo {
	return &otpRepo{pool: pool}
}

const otpColumns = `id, payment_id, code, is_verified, attempts, ip_address, created_at, expires_at, verified_at`

// Save upserts by payment id: replacing the code for a payment resets its
// attempt counter and verification state, keeping exactly one active code.
func (r *otpRepo) Save(ctx context.Context, tx repository.Tx, otp *model.PaymentOTP) error {
	const q = `
INSERT INTO payment_otps (id, payment_id, code, is_verified, attempts, ip_address, created_at, expires_at, verified_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (payment_id) DO UPDATE SET
  id=$1, code=$3, is_verified=$4, attempts=$5, ip_address=$6, created_at=$7, expires_at=$8, verified_at=$9;`

	_, err := execSQL(ctx, r.pool, tx, q,
		otp.ID, otp.PaymentID, otp.Code, otp.IsVerified, otp.Attempts, otp.IPAddress,
		otp.CreatedAt, otp.ExpiresAt, otp.VerifiedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *otpRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.PaymentOTP, error) {
	q := `SELECT ` + otpColumns + ` FROM payment_otps WHERE payment_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	otp := &model.PaymentOTP{}
	if err := row.Scan(&otp.ID, &otp.PaymentID, &otp.Code, &otp.IsVerified, &otp.Attempts,
		&otp.IPAddress, &otp.CreatedAt, &otp.ExpiresAt, &otp.VerifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return otp, nil
}

func (r *otpRepo) IncrementAttempts(ctx context.Context, tx repository.Tx, id string) (int, error) {
	const q = `UPDATE payment_otps SET attempts = attempts + 1 WHERE id=$1 RETURNING attempts;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return 0, err
	}
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return attempts, nil
}

func (r *otpRepo) MarkVerified(ctx context.Context, tx repository.Tx, id string, verifiedAt time.Time) error {
	const q = `UPDATE payment_otps SET is_verified=TRUE, verified_at=$2 WHERE id=$1 AND NOT is_verified;`
	_, err := execSQL(ctx, r.pool, tx, q, id, verifiedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
