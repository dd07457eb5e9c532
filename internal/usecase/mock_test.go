//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-payment-portal/internal/domain"
	"course-payment-portal/internal/domain/model"
	"course-payment-portal/internal/domain/ports/adapter"
	"course-payment-portal/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Payment
	seq  int64

	SaveFunc                func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByIDFunc            func(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error)
	UpdateStatusFunc        func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, chargeID *string, completedAt *time.Time) error
	AssignInvoiceNumberFunc func(ctx context.Context, tx repository.Tx, id, invoiceNumber string) (string, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{rows: map[string]*model.Payment{}}
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.IntentID == intentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, chargeID *string, completedAt *time.Time) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, tx, id, status, chargeID, completedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	if chargeID != nil {
		p.ChargeID = *chargeID
	}
	if completedAt != nil {
		p.CompletedAt = completedAt
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (m *MockPaymentRepo) AssignInvoiceNumber(ctx context.Context, tx repository.Tx, id, invoiceNumber string) (string, error) {
	if m.AssignInvoiceNumberFunc != nil {
		return m.AssignInvoiceNumberFunc(ctx, tx, id, invoiceNumber)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	if p.InvoiceNumber == "" {
		p.InvoiceNumber = invoiceNumber
	}
	return p.InvoiceNumber, nil
}

func (m *MockPaymentRepo) NextInvoiceSeq(ctx context.Context, tx repository.Tx) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *MockPaymentRepo) List(ctx context.Context, tx repository.Tx, limit, offset int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Payment, 0, len(m.rows))
	for _, p := range m.rows {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockPaymentRepo) ListVerifiedPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	return nil, nil
}

func (m *MockPaymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := "0"
	for _, p := range m.rows {
		if p.Status == model.PaymentStatusCompleted {
			sum = p.FinalAmount.String()
		}
	}
	return sum, nil
}

// get returns the stored row itself, for assertions.
func (m *MockPaymentRepo) get(id string) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *MockPaymentRepo) snapshot() map[string]*model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[string]*model.Payment, len(m.rows))
	for k, v := range m.rows {
		cp := *v
		snap[k] = &cp
	}
	return snap
}

// restore rolls the rows back to a snapshot. The sequence counter stays put,
// like a real database sequence across a rollback.
func (m *MockPaymentRepo) restore(snap map[string]*model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = snap
}

// ---- Mock OTPRepository ----

type MockOTPRepo struct {
	mu   sync.Mutex
	rows map[string]*model.PaymentOTP // keyed by payment id

	SaveFunc              func(ctx context.Context, tx repository.Tx, otp *model.PaymentOTP) error
	IncrementAttemptsFunc func(ctx context.Context, tx repository.Tx, id string) (int, error)
}

var _ repository.OTPRepository = (*MockOTPRepo)(nil)

func NewMockOTPRepo() *MockOTPRepo {
	return &MockOTPRepo{rows: map[string]*model.PaymentOTP{}}
}

func (m *MockOTPRepo) Save(ctx context.Context, tx repository.Tx, otp *model.PaymentOTP) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, otp)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *otp
	// Upsert by payment id: a resend replaces the row and resets counters.
	cp.Attempts = 0
	cp.IsVerified = false
	cp.VerifiedAt = nil
	m.rows[otp.PaymentID] = &cp
	return nil
}

func (m *MockOTPRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.PaymentOTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp, ok := m.rows[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *otp
	return &cp, nil
}

func (m *MockOTPRepo) IncrementAttempts(ctx context.Context, tx repository.Tx, id string) (int, error) {
	if m.IncrementAttemptsFunc != nil {
		return m.IncrementAttemptsFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, otp := range m.rows {
		if otp.ID == id {
			otp.Attempts++
			return otp.Attempts, nil
		}
	}
	return 0, domain.ErrNotFound
}

func (m *MockOTPRepo) MarkVerified(ctx context.Context, tx repository.Tx, id string, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, otp := range m.rows {
		if otp.ID == id {
			if otp.IsVerified {
				return domain.ErrOperationFailed
			}
			otp.IsVerified = true
			at := verifiedAt
			otp.VerifiedAt = &at
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockOTPRepo) get(paymentID string) *model.PaymentOTP {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[paymentID]
}

func (m *MockOTPRepo) snapshot() map[string]*model.PaymentOTP {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[string]*model.PaymentOTP, len(m.rows))
	for k, v := range m.rows {
		cp := *v
		snap[k] = &cp
	}
	return snap
}

func (m *MockOTPRepo) restore(snap map[string]*model.PaymentOTP) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = snap
}

// ---- Mock InvoiceRepository ----

type MockInvoiceRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Invoice // keyed by payment id
}

var _ repository.InvoiceRepository = (*MockInvoiceRepo)(nil)

func NewMockInvoiceRepo() *MockInvoiceRepo {
	return &MockInvoiceRepo{rows: map[string]*model.Invoice{}}
}

func (m *MockInvoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Insert only when absent: one invoice per payment.
	if _, ok := m.rows[inv.PaymentID]; ok {
		return nil
	}
	cp := *inv
	m.rows[inv.PaymentID] = &cp
	return nil
}

func (m *MockInvoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.rows[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *MockInvoiceRepo) get(paymentID string) *model.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[paymentID]
}

func (m *MockInvoiceRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MockInvoiceRepo) snapshot() map[string]*model.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[string]*model.Invoice, len(m.rows))
	for k, v := range m.rows {
		cp := *v
		snap[k] = &cp
	}
	return snap
}

func (m *MockInvoiceRepo) restore(snap map[string]*model.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = snap
}

// ---- Mock EnrollmentRepository ----

type MockEnrollmentRepo struct {
	mu   sync.Mutex
	rows map[string]*model.CourseEnrollment
}

var _ repository.EnrollmentRepository = (*MockEnrollmentRepo)(nil)

func NewMockEnrollmentRepo() *MockEnrollmentRepo {
	return &MockEnrollmentRepo{rows: map[string]*model.CourseEnrollment{}}
}

func (m *MockEnrollmentRepo) Save(ctx context.Context, tx repository.Tx, e *model.CourseEnrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *MockEnrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CourseEnrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockEnrollmentRepo) ListByRegistration(ctx context.Context, tx repository.Tx, registrationID string) ([]*model.CourseEnrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.CourseEnrollment
	for _, e := range m.rows {
		if e.RegistrationID == registrationID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock CoursePriceRepository ----

type MockCoursePriceRepo struct {
	mu   sync.Mutex
	rows map[string]*model.CoursePrice
}

var _ repository.CoursePriceRepository = (*MockCoursePriceRepo)(nil)

func NewMockCoursePriceRepo() *MockCoursePriceRepo {
	return &MockCoursePriceRepo{rows: map[string]*model.CoursePrice{}}
}

func (m *MockCoursePriceRepo) Save(ctx context.Context, tx repository.Tx, cp *model.CoursePrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cp
	m.rows[cp.CourseName] = &c
	return nil
}

func (m *MockCoursePriceRepo) FindByCourseName(ctx context.Context, tx repository.Tx, courseName string) (*model.CoursePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.rows[courseName]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *cp
	return &c, nil
}

// ---- Mock NotificationLogRepository ----

type MockNotificationLogRepo struct {
	mu   sync.Mutex
	Rows []*model.NotificationRecord
}

var _ repository.NotificationLogRepository = (*MockNotificationLogRepo)(nil)

func NewMockNotificationLogRepo() *MockNotificationLogRepo {
	return &MockNotificationLogRepo{}
}

func (m *MockNotificationLogRepo) Save(ctx context.Context, tx repository.Tx, rec *model.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.Rows = append(m.Rows, &cp)
	return nil
}

func (m *MockNotificationLogRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.NotificationRecord
	for _, rec := range m.Rows {
		if rec.PaymentID == paymentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockGateway struct {
	mu sync.Mutex

	CreateIntentFunc   func(ctx context.Context, amountMinor int64, currency, paymentMethodRef string, meta map[string]string) (*adapter.IntentResult, error)
	ConfirmIntentFunc  func(ctx context.Context, intentID string) (*adapter.ConfirmResult, error)
	RetrieveIntentFunc func(ctx context.Context, intentID string) (*adapter.ConfirmResult, error)
	RefundFunc         func(ctx context.Context, chargeID string, amountMinor int64) (*adapter.RefundResult, error)

	Calls struct {
		CreateIntent  int
		ConfirmIntent int
		Refund        int
	}
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, paymentMethodRef string, meta map[string]string) (*adapter.IntentResult, error) {
	m.mu.Lock()
	m.Calls.CreateIntent++
	m.mu.Unlock()
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, amountMinor, currency, paymentMethodRef, meta)
	}
	return &adapter.IntentResult{IntentID: "pi_test_1", ClientSecret: "pi_test_1_secret"}, nil
}

func (m *MockGateway) ConfirmIntent(ctx context.Context, intentID string) (*adapter.ConfirmResult, error) {
	m.mu.Lock()
	m.Calls.ConfirmIntent++
	m.mu.Unlock()
	if m.ConfirmIntentFunc != nil {
		return m.ConfirmIntentFunc(ctx, intentID)
	}
	return &adapter.ConfirmResult{Status: adapter.ConfirmStatusSucceeded, ChargeID: "ch_test_1", RawStatus: "succeeded"}, nil
}

func (m *MockGateway) RetrieveIntent(ctx context.Context, intentID string) (*adapter.ConfirmResult, error) {
	if m.RetrieveIntentFunc != nil {
		return m.RetrieveIntentFunc(ctx, intentID)
	}
	return &adapter.ConfirmResult{Status: adapter.ConfirmStatusSucceeded, ChargeID: "ch_test_1", RawStatus: "succeeded"}, nil
}

func (m *MockGateway) Refund(ctx context.Context, chargeID string, amountMinor int64) (*adapter.RefundResult, error) {
	m.mu.Lock()
	m.Calls.Refund++
	m.mu.Unlock()
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, chargeID, amountMinor)
	}
	return &adapter.RefundResult{RefundID: "re_test_1", Status: "succeeded"}, nil
}

func (m *MockGateway) VerifyWebhook(payload []byte, signatureHeader string) (*adapter.WebhookEvent, error) {
	return nil, domain.ErrOperationFailed
}

func (m *MockGateway) ConfirmCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls.ConfirmIntent
}

// ---- Mock Notifier ----

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []sentMail

	SendFunc func(ctx context.Context, to, subject, body string, attachments ...adapter.Attachment) bool
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Send(ctx context.Context, to, subject, body string, attachments ...adapter.Attachment) bool {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, subject, body, attachments...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMail{To: to, Subject: subject, Body: body})
	return true
}

func (m *MockNotifier) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

func (m *MockNotifier) lastSent() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Sent[len(m.Sent)-1]
}

// =============================
// Infrastructure fakes
// =============================

// ---- Mock TransactionManager ----

// MockTxManager serializes transactions with a mutex, standing in for the
// row locks the real implementation takes, and rolls the repositories back
// when the closure errors, the way a real transaction would discard its
// writes. Assign WithTxFunc to override.
type MockTxManager struct {
	mu       sync.Mutex
	payments *MockPaymentRepo
	otps     *MockOTPRepo
	invoices *MockInvoiceRepo

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(payments *MockPaymentRepo, otps *MockOTPRepo, invoices *MockInvoiceRepo) *MockTxManager {
	return &MockTxManager{payments: payments, otps: otps, invoices: invoices}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	paySnap := m.payments.snapshot()
	otpSnap := m.otps.snapshot()
	invSnap := m.invoices.snapshot()
	if err := fn(ctx, nil); err != nil {
		m.payments.restore(paySnap)
		m.otps.restore(otpSnap)
		m.invoices.restore(invSnap)
		return err
	}
	return nil
}

// ---- Inline TaskRunner ----

// inlineRunner executes background tasks synchronously so tests observe
// their effects immediately. Set dropped to simulate a saturated queue.
type inlineRunner struct {
	dropped bool
}

var _ adapter.TaskRunner = (*inlineRunner)(nil)

func (r *inlineRunner) Run(task func(ctx context.Context)) bool {
	if r.dropped {
		return false
	}
	task(context.Background())
	return true
}

// ---- In-memory AttemptStore ----

type memAttemptStore struct {
	mu      sync.Mutex
	counts  map[string]int
	strs    map[string]string
	expires map[string]time.Time
}

var _ repository.AttemptStore = (*memAttemptStore)(nil)

func newMemAttemptStore() *memAttemptStore {
	return &memAttemptStore{
		counts:  map[string]int{},
		strs:    map[string]string{},
		expires: map[string]time.Time{},
	}
}

func (s *memAttemptStore) expired(key string) bool {
	exp, ok := s.expires[key]
	return ok && time.Now().After(exp)
}

func (s *memAttemptStore) Get(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key) {
		return 0, nil
	}
	return s.counts[key], nil
}

func (s *memAttemptStore) Incr(_ context.Context, key string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key) {
		delete(s.counts, key)
	}
	s.counts[key]++
	s.expires[key] = time.Now().Add(ttl)
	return s.counts[key], nil
}

func (s *memAttemptStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, key)
	delete(s.strs, key)
	delete(s.expires, key)
	return nil
}

func (s *memAttemptStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strs[key] = value
	s.expires[key] = time.Now().Add(ttl)
	return nil
}

func (s *memAttemptStore) GetString(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired(key) {
		return "", nil
	}
	return s.strs[key], nil
}

func (s *memAttemptStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expires[key]
	if !ok {
		return 0, nil
	}
	return time.Until(exp), nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
