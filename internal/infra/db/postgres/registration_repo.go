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

var (
	_ repository.RegistrationRepository    = (*registrationRepo)(nil)
	_ repository.EnrollmentRepository      = (*enrollmentRepo)(nil)
	_ repository.CoursePriceRepository     = (*coursePriceRepo)(nil)
	_ repository.NotificationLogRepository = (*notificationLogRepo)(nil)
)

type registrationRepo struct{ pool *pgxpool.Pool }

func NewRegistrationRepo(pool *pgxpool.Pool) *registrationRepo {
	return &registrationRepo{pool: pool}
}

func (r *registrationRepo) Save(ctx context.Context, tx repository.Tx, reg *model.Registration) error {
	const q = `
INSERT INTO registrations (id, registration_number, name, email, phone, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET name=$3, email=$4, phone=$5;`
	_, err := execSQL(ctx, r.pool, tx, q, reg.ID, reg.RegistrationNumber, reg.Name, reg.Email, reg.Phone, reg.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *registrationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Registration, error) {
	return r.findOne(ctx, tx, `WHERE id=$1`, id)
}

func (r *registrationRepo) FindByRegistrationNumber(ctx context.Context, tx repository.Tx, number string) (*model.Registration, error) {
	return r.findOne(ctx, tx, `WHERE registration_number=$1`, number)
}

func (r *registrationRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg interface{}) (*model.Registration, error) {
	q := `SELECT id, registration_number, name, email, phone, created_at FROM registrations ` + where + ` LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	reg := &model.Registration{}
	if err := row.Scan(&reg.ID, &reg.RegistrationNumber, &reg.Name, &reg.Email, &reg.Phone, &reg.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return reg, nil
}

type enrollmentRepo struct{ pool *pgxpool.Pool }

func NewEnrollmentRepo(pool *pgxpool.Pool) *enrollmentRepo {
	return &enrollmentRepo{pool: pool}
}

func (r *enrollmentRepo) Save(ctx context.Context, tx repository.Tx, e *model.CourseEnrollment) error {
	const q = `
INSERT INTO course_enrollments (id, registration_id, course_name, enrolled_at)
VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.RegistrationID, e.CourseName, e.EnrolledAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *enrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CourseEnrollment, error) {
	const q = `SELECT id, registration_id, course_name, enrolled_at FROM course_enrollments WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	e := &model.CourseEnrollment{}
	if err := row.Scan(&e.ID, &e.RegistrationID, &e.CourseName, &e.EnrolledAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func (r *enrollmentRepo) ListByRegistration(ctx context.Context, tx repository.Tx, registrationID string) ([]*model.CourseEnrollment, error) {
	const q = `SELECT id, registration_id, course_name, enrolled_at FROM course_enrollments WHERE registration_id=$1 ORDER BY enrolled_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, registrationID)
	if err != nil {
		return nil, mapListErr(err)
	}
	defer rows.Close()
	var out []*model.CourseEnrollment
	for rows.Next() {
		e := &model.CourseEnrollment{}
		if err := rows.Scan(&e.ID, &e.RegistrationID, &e.CourseName, &e.EnrolledAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}

type coursePriceRepo struct{ pool *pgxpool.Pool }

func NewCoursePriceRepo(pool *pgxpool.Pool) *coursePriceRepo {
	return &coursePriceRepo{pool: pool}
}

func (r *coursePriceRepo) Save(ctx context.Context, tx repository.Tx, cp *model.CoursePrice) error {
	const q = `
INSERT INTO course_prices (course_name, price, currency)
VALUES ($1,$2,$3) ON CONFLICT (course_name) DO UPDATE SET price=$2, currency=$3;`
	_, err := execSQL(ctx, r.pool, tx, q, cp.CourseName, cp.Price.String(), cp.Currency)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *coursePriceRepo) FindByCourseName(ctx context.Context, tx repository.Tx, courseName string) (*model.CoursePrice, error) {
	const q = `SELECT course_name, price::text, currency FROM course_prices WHERE course_name=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, courseName)
	if err != nil {
		return nil, err
	}
	cp := &model.CoursePrice{}
	var price string
	if err := row.Scan(&cp.CourseName, &price, &cp.Currency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	var perr error
	if cp.Price, perr = decimal.NewFromString(price); perr != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return cp, nil
}

type notificationLogRepo struct{ pool *pgxpool.Pool }

func NewNotificationLogRepo(pool *pgxpool.Pool) *notificationLogRepo {
	return &notificationLogRepo{pool: pool}
}

func (r *notificationLogRepo) Save(ctx context.Context, tx repository.Tx, rec *model.NotificationRecord) error {
	const q = `
INSERT INTO notification_log (id, payment_id, kind, recipient, sent, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q, rec.ID, rec.PaymentID, rec.Kind, rec.Recipient, rec.Sent, rec.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *notificationLogRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.NotificationRecord, error) {
	const q = `SELECT id, payment_id, kind, recipient, sent, created_at FROM notification_log WHERE payment_id=$1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, mapListErr(err)
	}
	defer rows.Close()
	var out []*model.NotificationRecord
	for rows.Next() {
		rec := &model.NotificationRecord{}
		if err := rows.Scan(&rec.ID, &rec.PaymentID, &rec.Kind, &rec.Recipient, &rec.Sent, &rec.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, rec)
	}
	return out, nil
}
