package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Registration is a registered student. One registration may hold multiple
// course enrollments, each independently payable.
type Registration struct {
	ID                 string // UUID
	RegistrationNumber string // human-facing, unique
	Name               string
	Email              string
	Phone              string
	CreatedAt          time.Time
}

// CourseEnrollment links a registration to one course.
type CourseEnrollment struct {
	ID             string // UUID
	RegistrationID string
	CourseName     string
	EnrolledAt     time.Time
}

// CoursePrice is the published price for a course.
type CoursePrice struct {
	CourseName string
	Price      decimal.Decimal
	Currency   string
}

// NotificationKind labels entries in the notification log.
type NotificationKind string

const (
	NotificationKindOTP     NotificationKind = "otp"
	NotificationKindReceipt NotificationKind = "receipt"
)

// NotificationRecord is a best-effort audit entry for outbound email.
type NotificationRecord struct {
	ID        string // ULID
	PaymentID string
	Kind      NotificationKind
	Recipient string
	Sent      bool
	CreatedAt time.Time
}
