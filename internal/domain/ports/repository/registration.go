package repository

import (
	"context"

	"course-payment-portal/internal/domain/model"
)

type RegistrationRepository interface {
	Save(ctx context.Context, tx Tx, r *model.Registration) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Registration, error)
	FindByRegistrationNumber(ctx context.Context, tx Tx, number string) (*model.Registration, error)
}

type EnrollmentRepository interface {
	Save(ctx context.Context, tx Tx, e *model.CourseEnrollment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.CourseEnrollment, error)
	ListByRegistration(ctx context.Context, tx Tx, registrationID string) ([]*model.CourseEnrollment, error)
}

type CoursePriceRepository interface {
	Save(ctx context.Context, tx Tx, cp *model.CoursePrice) error
	FindByCourseName(ctx context.Context, tx Tx, courseName string) (*model.CoursePrice, error)
}

// NotificationLogRepository records outbound email attempts, best effort.
type NotificationLogRepository interface {
	Save(ctx context.Context, tx Tx, rec *model.NotificationRecord) error
	ListByPayment(ctx context.Context, tx Tx, paymentID string) ([]*model.NotificationRecord, error)
}
