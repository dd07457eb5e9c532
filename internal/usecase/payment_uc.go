package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"course-payment-portal/internal/domain"
	"course-payment-portal/internal/domain/model"
	"course-payment-portal/internal/domain/ports/adapter"
	"course-payment-portal/internal/domain/ports/repository"
	"course-payment-portal/internal/infra/metrics"
	"course-payment-portal/internal/security"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// InitiateInput carries everything a payer submits to start a payment.
// Card data is already tokenized by the provider's client library; only the
// masked descriptor ever reaches us.
type InitiateInput struct {
	RegistrationID   string
	EnrollmentID     string
	PaymentMethodRef string
	Amount           decimal.Decimal
	CardHolder       string
	CardBrand        string
	CardLastFour     string
	Email            string
	RemoteAddr       string
}

type InitiateResult struct {
	Payment      *model.Payment
	ClientSecret string
	EmailSent    bool
}

// VerifyOutcome is the bounded result set of a successful code match.
type VerifyOutcome string

const (
	OutcomeConfirmed          VerifyOutcome = "confirmed"
	OutcomeRequiresAction     VerifyOutcome = "requires_action"
	OutcomeConfirmationFailed VerifyOutcome = "confirmation_failed"
)

type VerifyResult struct {
	Outcome       VerifyOutcome
	Payment       *model.Payment
	InvoiceNumber string
	ClientSecret  string // set when Outcome == requires_action
}

type PaymentUseCase interface {
	// Initiate creates the provider intent, the pending payment and its OTP,
	// and best-effort emails the code to the payer.
	Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error)
	// Verify checks a submitted code and, on match, drives gateway capture.
	Verify(ctx context.Context, paymentID, submittedCode, remoteAddr string) (*VerifyResult, error)
	// ResendCode replaces the active code for a still-pending payment.
	ResendCode(ctx context.Context, paymentID string) (bool, error)
	// ConfirmPending retries gateway capture for a payment whose code is
	// already spent; it never re-runs the OTP check.
	ConfirmPending(ctx context.Context, paymentID string) (*VerifyResult, error)
	// HandleWebhook finalizes payments the provider settled out of band.
	HandleWebhook(ctx context.Context, event *adapter.WebhookEvent) error
	// Refund refunds a completed payment; zero amount means full refund.
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*adapter.RefundResult, error)

	Get(ctx context.Context, paymentID string) (*model.Payment, error)
	List(ctx context.Context, limit, offset int) ([]*model.Payment, error)
	RevenueByPeriod(ctx context.Context, period string) (string, error)
}

type paymentUC struct {
	payments    repository.PaymentRepository
	otps        repository.OTPRepository
	invoices    repository.InvoiceRepository
	enrollments repository.EnrollmentRepository
	prices      repository.CoursePriceRepository
	notifLog    repository.NotificationLogRepository
	gateway     adapter.PaymentGateway
	otpMail     adapter.Notifier // synchronous, result feeds the email_sent flag
	receiptMail adapter.Notifier // dispatched on the background runner
	bg          adapter.TaskRunner
	otpMgr      *security.OTPManager
	validator   *security.PaymentValidator
	tm          repository.TransactionManager
	taxRate     decimal.Decimal
	currency    string
	log         *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	otps repository.OTPRepository,
	invoices repository.InvoiceRepository,
	enrollments repository.EnrollmentRepository,
	prices repository.CoursePriceRepository,
	notifLog repository.NotificationLogRepository,
	gateway adapter.PaymentGateway,
	otpMail adapter.Notifier,
	receiptMail adapter.Notifier,
	bg adapter.TaskRunner,
	otpMgr *security.OTPManager,
	validator *security.PaymentValidator,
	tm repository.TransactionManager,
	taxRate decimal.Decimal,
	currency string,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		payments:    payments,
		otps:        otps,
		invoices:    invoices,
		enrollments: enrollments,
		prices:      prices,
		notifLog:    notifLog,
		gateway:     gateway,
		otpMail:     otpMail,
		receiptMail: receiptMail,
		bg:          bg,
		otpMgr:      otpMgr,
		validator:   validator,
		tm:          tm,
		taxRate:     taxRate,
		currency:    currency,
		log:         logger,
	}
}

// rateLimitID derives the rate-limit/lockout identifier for a payment.
func rateLimitID(paymentID string) string { return "payment:" + paymentID }

func (u *paymentUC) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	if err := u.validator.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if err := u.validator.ValidateCardBrand(in.CardBrand); err != nil {
		return nil, err
	}
	if err := u.validator.ValidateEmail(in.Email); err != nil {
		return nil, err
	}

	enrollment, err := u.enrollments.FindByID(ctx, nil, in.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	price, err := u.prices.FindByCourseName(ctx, nil, enrollment.CourseName)
	if err != nil {
		return nil, fmt.Errorf("find course price: %w", err)
	}

	// Tax is recomputed server-side and frozen on the row.
	amount := in.Amount.Round(2)
	tax := model.TaxFor(amount, u.taxRate)
	final := amount.Add(tax)

	now := time.Now()
	paymentID := uuid.NewString()

	// Provider intent first: a declined card must not leave a payment row.
	intent, err := u.gateway.CreateIntent(ctx, model.MinorUnits(final), u.currency, in.PaymentMethodRef, map[string]string{
		"payment_id":  paymentID,
		"course_name": enrollment.CourseName,
		"student":     in.CardHolder,
	})
	if err != nil {
		u.logGatewayFailure("Initiate", paymentID, err)
		return nil, err
	}

	code, err := u.otpMgr.GenerateCode()
	if err != nil {
		return nil, err
	}

	p := &model.Payment{
		ID:             paymentID,
		RegistrationID: in.RegistrationID,
		EnrollmentID:   in.EnrollmentID,
		CourseName:     enrollment.CourseName,
		TotalPrice:     price.Price,
		PaymentAmount:  amount,
		TaxAmount:      tax,
		FinalAmount:    final,
		Currency:       u.currency,
		Status:         model.PaymentStatusPending,
		PaymentMethod:  in.CardBrand,
		CardHolder:     security.Sanitize(in.CardHolder, 120),
		CardLastFour:   in.CardLastFour,
		Email:          in.Email,
		IntentID:       intent.IntentID,
		TransactionID:  uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	otp := &model.PaymentOTP{
		ID:        uuid.NewString(),
		PaymentID: paymentID,
		Code:      code,
		IPAddress: in.RemoteAddr,
		CreatedAt: now,
		ExpiresAt: u.otpMgr.ExpiryOf(now),
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.Save(ctx, tx, p); err != nil {
			return err
		}
		return u.otps.Save(ctx, tx, otp)
	})
	if err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}
	metrics.IncPayment(string(model.PaymentStatusPending))

	sent := u.sendOTPMail(ctx, p, code)

	u.log.Info().Str("payment_id", p.ID).Str("course", p.CourseName).
		Bool("email_sent", sent).Msg("payment initiated")
	return &InitiateResult{Payment: p, ClientSecret: intent.ClientSecret, EmailSent: sent}, nil
}

func (u *paymentUC) Verify(ctx context.Context, paymentID, submittedCode, remoteAddr string) (*VerifyResult, error) {
	start := time.Now()
	res, err := u.verify(ctx, paymentID, submittedCode, remoteAddr)
	metrics.ObserveVerify(verifyReason(res, err), time.Since(start))
	return res, err
}

func (u *paymentUC) verify(ctx context.Context, paymentID, submittedCode, remoteAddr string) (*VerifyResult, error) {
	ident := rateLimitID(paymentID)

	var (
		payment  *model.Payment
		matched  bool
		mismatch *domain.CodeMismatchError
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Row locks serialize concurrent submissions for one payment.
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		otp, err := u.otps.FindByPaymentID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		payment = p

		locked, secs, err := u.otpMgr.IsLockedOut(ctx, ident)
		if err != nil {
			return err
		}
		if locked {
			return &domain.LockoutError{SecondsRemaining: secs}
		}
		if otp.IsVerified {
			return domain.ErrCodeAlreadyUsed
		}
		// A malformed submission never consumes an attempt.
		if !u.otpMgr.ValidateFormat(submittedCode) {
			return domain.ErrCodeInvalidFormat
		}
		if otp.Expired(time.Now()) {
			return domain.ErrCodeExpired
		}
		if otp.Attempts >= u.otpMgr.MaxAttempts() {
			return domain.ErrMaxAttemptsExceeded
		}
		allowed, _, err := u.otpMgr.CheckRateLimit(ctx, ident)
		if err != nil {
			return err
		}
		if !allowed {
			return domain.ErrRateLimited
		}

		// Burn the attempt before comparing, so a crash or a concurrent
		// retry can never obtain a free extra attempt.
		attempts, err := u.otps.IncrementAttempts(ctx, tx, otp.ID)
		if err != nil {
			return err
		}

		if strings.TrimSpace(submittedCode) != otp.Code {
			if rlErr := u.otpMgr.RecordAttempt(ctx, ident, false); rlErr != nil {
				u.log.Warn().Err(rlErr).Str("payment_id", paymentID).Msg("rate limiter record failed")
			}
			if attempts >= u.otpMgr.MaxAttempts() {
				if loErr := u.otpMgr.Lockout(ctx, ident); loErr != nil {
					u.log.Warn().Err(loErr).Str("payment_id", paymentID).Msg("lockout set failed")
				}
			}
			remaining := u.otpMgr.MaxAttempts() - attempts
			if remaining < 0 {
				remaining = 0
			}
			// Returned as a value, not an error: an error would roll the
			// transaction back and un-burn the attempt counter.
			mismatch = &domain.CodeMismatchError{AttemptsRemaining: remaining}
			return nil
		}

		if err := u.otps.MarkVerified(ctx, tx, otp.ID, time.Now()); err != nil {
			return err
		}
		if rlErr := u.otpMgr.RecordAttempt(ctx, ident, true); rlErr != nil {
			u.log.Warn().Err(rlErr).Str("payment_id", paymentID).Msg("rate limiter clear failed")
		}
		matched = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if mismatch != nil {
		return nil, mismatch
	}
	if !matched {
		return nil, domain.ErrOperationFailed
	}

	u.log.Info().Str("payment_id", paymentID).Str("remote_addr", remoteAddr).Msg("otp verified")
	return u.confirmCapture(ctx, payment)
}

// confirmCapture runs the gateway confirmation step for a payment whose OTP
// is already spent. Retryable by operators without re-running the OTP check.
func (u *paymentUC) confirmCapture(ctx context.Context, p *model.Payment) (*VerifyResult, error) {
	res, err := u.gateway.ConfirmIntent(ctx, p.IntentID)
	if err != nil {
		u.logGatewayFailure("ConfirmIntent", p.ID, err)
		// Payment stays pending so the capture can be re-attempted.
		return &VerifyResult{Outcome: OutcomeConfirmationFailed, Payment: p}, nil
	}

	switch res.Status {
	case adapter.ConfirmStatusSucceeded:
		return u.finalize(ctx, p, res.ChargeID)
	case adapter.ConfirmStatusRequiresAction:
		u.log.Info().Str("payment_id", p.ID).Msg("gateway requires further client action")
		return &VerifyResult{Outcome: OutcomeRequiresAction, Payment: p, ClientSecret: res.ClientSecret}, nil
	default:
		u.log.Warn().Str("payment_id", p.ID).Str("provider_status", res.RawStatus).Msg("gateway confirmation not successful")
		return &VerifyResult{Outcome: OutcomeConfirmationFailed, Payment: p}, nil
	}
}

// finalize transitions a captured payment to completed, assigns its invoice
// number exactly once and issues the invoice record alongside it.
func (u *paymentUC) finalize(ctx context.Context, p *model.Payment, chargeID string) (*VerifyResult, error) {
	var invoiceNumber string
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.payments.FindByID(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if cur.Status == model.PaymentStatusCompleted {
			invoiceNumber = cur.InvoiceNumber // already settled, idempotent
			return nil
		}
		seq, err := u.payments.NextInvoiceSeq(ctx, tx)
		if err != nil {
			return err
		}
		now := time.Now()
		invoiceNumber, err = u.payments.AssignInvoiceNumber(ctx, tx, p.ID, formatInvoiceNumber(now, seq))
		if err != nil {
			return err
		}
		// An empty charge id must not clobber one stored by an earlier
		// capture attempt.
		var charge *string
		if chargeID != "" {
			charge = &chargeID
		}
		if err := u.payments.UpdateStatus(ctx, tx, p.ID, model.PaymentStatusCompleted, charge, &now); err != nil {
			return err
		}
		return u.invoices.Save(ctx, tx, &model.Invoice{
			ID:            uuid.NewString(),
			PaymentID:     p.ID,
			InvoiceNumber: invoiceNumber,
			Amount:        cur.PaymentAmount,
			TaxAmount:     cur.TaxAmount,
			TotalAmount:   cur.FinalAmount,
			Currency:      cur.Currency,
			IssuedAt:      now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("finalize payment: %w", err)
	}

	p.Status = model.PaymentStatusCompleted
	if chargeID != "" {
		p.ChargeID = chargeID
	}
	p.InvoiceNumber = invoiceNumber
	metrics.IncPayment(string(model.PaymentStatusCompleted))

	u.sendReceiptMail(ctx, p)

	u.log.Info().Str("payment_id", p.ID).Str("invoice", invoiceNumber).Msg("payment completed")
	return &VerifyResult{Outcome: OutcomeConfirmed, Payment: p, InvoiceNumber: invoiceNumber}, nil
}

func (u *paymentUC) ResendCode(ctx context.Context, paymentID string) (bool, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return false, err
	}
	if p.Status != model.PaymentStatusPending {
		return false, domain.ErrPaymentNotPending
	}
	otp, err := u.otps.FindByPaymentID(ctx, nil, paymentID)
	if err != nil {
		return false, err
	}
	if otp.IsVerified {
		return false, domain.ErrCodeAlreadyUsed
	}

	code, err := u.otpMgr.GenerateCode()
	if err != nil {
		return false, err
	}
	now := time.Now()
	fresh := &model.PaymentOTP{
		ID:        uuid.NewString(),
		PaymentID: paymentID,
		Code:      code,
		IPAddress: otp.IPAddress,
		CreatedAt: now,
		ExpiresAt: u.otpMgr.ExpiryOf(now),
	}
	// Upsert keyed by payment id keeps the one-active-code invariant.
	if err := u.otps.Save(ctx, nil, fresh); err != nil {
		return false, fmt.Errorf("replace code: %w", err)
	}
	sent := u.sendOTPMail(ctx, p, code)
	u.log.Info().Str("payment_id", paymentID).Bool("email_sent", sent).Msg("otp resent")
	return sent, nil
}

func (u *paymentUC) ConfirmPending(ctx context.Context, paymentID string) (*VerifyResult, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusPending {
		return nil, domain.ErrPaymentNotPending
	}
	otp, err := u.otps.FindByPaymentID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if !otp.IsVerified {
		return nil, domain.ErrInvalidArgument
	}
	return u.confirmCapture(ctx, p)
}

func (u *paymentUC) HandleWebhook(ctx context.Context, event *adapter.WebhookEvent) error {
	if event.Type != "payment_intent.succeeded" || event.IntentID == "" {
		return nil
	}
	p, err := u.payments.FindByIntentID(ctx, nil, event.IntentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil // not ours
		}
		return err
	}
	if p.Status == model.PaymentStatusCompleted {
		return nil
	}
	otp, err := u.otps.FindByPaymentID(ctx, nil, p.ID)
	if err != nil {
		return err
	}
	if !otp.IsVerified {
		// Settled upstream before the payer proved channel control; leave
		// pending for the reconciler/operator path.
		u.log.Warn().Str("payment_id", p.ID).Msg("webhook settlement for unverified payment")
		return nil
	}
	_, err = u.finalize(ctx, p, event.ChargeID)
	return err
}

func (u *paymentUC) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*adapter.RefundResult, error) {
	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusCompleted || p.ChargeID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var minor int64
	if amount.GreaterThan(decimal.Zero) {
		minor = model.MinorUnits(amount)
	}
	res, err := u.gateway.Refund(ctx, p.ChargeID, minor)
	if err != nil {
		u.logGatewayFailure("Refund", p.ID, err)
		return nil, err
	}
	u.log.Info().Str("payment_id", p.ID).Str("refund_id", res.RefundID).Msg("refund issued")
	return res, nil
}

func (u *paymentUC) Get(ctx context.Context, paymentID string) (*model.Payment, error) {
	return u.payments.FindByID(ctx, nil, paymentID)
}

func (u *paymentUC) List(ctx context.Context, limit, offset int) ([]*model.Payment, error) {
	return u.payments.List(ctx, nil, limit, offset)
}

func (u *paymentUC) RevenueByPeriod(ctx context.Context, period string) (string, error) {
	switch period {
	case "day", "week", "month":
	default:
		return "", domain.ErrInvalidArgument
	}
	return u.payments.SumCompletedByPeriod(ctx, nil, period)
}

func (u *paymentUC) sendOTPMail(ctx context.Context, p *model.Payment, code string) bool {
	subject := "Your payment verification code"
	body := fmt.Sprintf(
		"Your verification code for the %s payment of %s %s is: %s\nIt expires in %d minutes.",
		p.CourseName, p.FinalAmount.StringFixed(2), p.Currency, code, int(u.otpMgr.Window().Minutes()))
	sent := u.otpMail.Send(ctx, p.Email, subject, body)
	u.recordNotification(ctx, p, model.NotificationKindOTP, sent)
	return sent
}

// sendReceiptMail dispatches the receipt on the background runner so SMTP
// latency never rides the verification path. The notification log records
// the delivery outcome, not the fact of queueing.
func (u *paymentUC) sendReceiptMail(ctx context.Context, p *model.Payment) {
	subject := fmt.Sprintf("Payment receipt %s", p.InvoiceNumber)
	body := fmt.Sprintf(
		"We received your payment of %s %s for %s.\nInvoice number: %s\nTransaction: %s",
		p.FinalAmount.StringFixed(2), p.Currency, p.CourseName, p.InvoiceNumber, p.TransactionID)
	queued := u.bg.Run(func(ctx context.Context) {
		sent := u.receiptMail.Send(ctx, p.Email, subject, body)
		u.recordNotification(ctx, p, model.NotificationKindReceipt, sent)
	})
	if !queued {
		u.log.Warn().Str("payment_id", p.ID).Msg("receipt dropped, queue full")
		u.recordNotification(ctx, p, model.NotificationKindReceipt, false)
	}
}

func (u *paymentUC) recordNotification(ctx context.Context, p *model.Payment, kind model.NotificationKind, sent bool) {
	rec := &model.NotificationRecord{
		ID:        ulid.Make().String(),
		PaymentID: p.ID,
		Kind:      kind,
		Recipient: p.Email,
		Sent:      sent,
		CreatedAt: time.Now(),
	}
	if err := u.notifLog.Save(ctx, nil, rec); err != nil {
		u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("notification log write failed")
	}
}

func (u *paymentUC) logGatewayFailure(op, paymentID string, err error) {
	ev := u.log.Error()
	if ge, ok := domain.AsGatewayError(err); ok {
		if ge.Kind == domain.GatewayErrAuth {
			// Operator-facing: provider credentials/config are broken.
			ev = u.log.Error().Str("severity", "critical")
		}
		ev = ev.Str("gateway_error_kind", string(ge.Kind))
	}
	ev.Err(err).Str("op", op).Str("payment_id", paymentID).Msg("gateway call failed")
}

func formatInvoiceNumber(t time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%06d", t.Format("20060102"), seq)
}

func verifyReason(res *VerifyResult, err error) string {
	if err == nil && res != nil {
		return string(res.Outcome)
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrLockedOut):
		return "locked_out"
	case errors.Is(err, domain.ErrCodeAlreadyUsed):
		return "already_used"
	case errors.Is(err, domain.ErrCodeInvalidFormat):
		return "invalid_format"
	case errors.Is(err, domain.ErrCodeExpired):
		return "expired"
	case errors.Is(err, domain.ErrMaxAttemptsExceeded):
		return "max_attempts"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrCodeMismatch):
		return "mismatch"
	default:
		return "internal"
	}
}
