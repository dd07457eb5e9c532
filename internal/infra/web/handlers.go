package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"course-payment-portal/internal/domain"
	"course-payment-portal/internal/usecase"
)

type errorEnvelope struct {
	Error             string `json:"error"`
	ErrorType         string `json:"error_type"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	RetryAfterSeconds *int   `json:"retry_after_seconds,omitempty"`
}

type initiateRequest struct {
	PayerID          string          `json:"payer_id"`
	EnrollmentID     string          `json:"enrollment_id"`
	PaymentMethodRef string          `json:"payment_method_ref"`
	Amount           decimal.Decimal `json:"amount"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	CardHolder       string          `json:"card_holder"`
	CardBrand        string          `json:"card_brand"`
	CardLastFour     string          `json:"card_last_four"`
	Email            string          `json:"email"`
}

type initiateResponse struct {
	PaymentID    string `json:"payment_id"`
	ClientSecret string `json:"client_secret"`
	EmailSent    bool   `json:"email_sent"`
}

type verifyRequest struct {
	PaymentID string `json:"payment_id"`
	Code      string `json:"code"`
}

type verifyResponse struct {
	Status         string `json:"status"`
	PaymentID      string `json:"payment_id,omitempty"`
	InvoiceNumber  string `json:"invoice_number,omitempty"`
	Message        string `json:"message"`
	RequiresAction bool   `json:"requires_action,omitempty"`
	ClientSecret   string `json:"client_secret,omitempty"`
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "invalid request body", ErrorType: "bad_request"})
		return
	}
	// The server recomputes tax and total, but a client-side figure that
	// disagrees with its own arithmetic means the payer saw a different
	// price than the one about to be charged.
	if !req.Total.IsZero() && !req.Total.Equal(req.Amount.Add(req.Tax)) {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: s.msgs.T("payment.validation.total"), ErrorType: "validation"})
		return
	}

	res, err := s.payUC.Initiate(r.Context(), usecase.InitiateInput{
		RegistrationID:   req.PayerID,
		EnrollmentID:     req.EnrollmentID,
		PaymentMethodRef: req.PaymentMethodRef,
		Amount:           req.Amount,
		CardHolder:       req.CardHolder,
		CardBrand:        req.CardBrand,
		CardLastFour:     req.CardLastFour,
		Email:            req.Email,
		RemoteAddr:       r.RemoteAddr,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, initiateResponse{
		PaymentID:    res.Payment.ID,
		ClientSecret: res.ClientSecret,
		EmailSent:    res.EmailSent,
	})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "invalid request body", ErrorType: "bad_request"})
		return
	}

	res, err := s.payUC.Verify(r.Context(), req.PaymentID, req.Code, r.RemoteAddr)
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch res.Outcome {
	case usecase.OutcomeConfirmed:
		writeJSON(w, http.StatusOK, verifyResponse{
			Status:        "success",
			PaymentID:     res.Payment.ID,
			InvoiceNumber: res.InvoiceNumber,
			Message:       s.msgs.T("verify.confirmed"),
		})
	case usecase.OutcomeRequiresAction:
		writeJSON(w, http.StatusOK, verifyResponse{
			Status:         "success",
			PaymentID:      res.Payment.ID,
			Message:        s.msgs.T("verify.requires_action"),
			RequiresAction: true,
			ClientSecret:   res.ClientSecret,
		})
	default:
		writeJSON(w, http.StatusOK, verifyResponse{
			Status:    "error",
			PaymentID: res.Payment.ID,
			Message:   s.msgs.T("verify.confirmation_failed"),
		})
	}
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	sent, err := s.payUC.ResendCode(r.Context(), paymentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"email_sent": sent})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	event, err := s.gateway.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.log.Warn().Err(err).Msg("webhook signature rejected")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	if err := s.payUC.HandleWebhook(r.Context(), event); err != nil {
		s.log.Error().Err(err).Str("event", event.ID).Msg("webhook processing failed")
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleAdminListPayments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	payments, err := s.payUC.List(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) handleAdminGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.payUC.Get(r.Context(), chi.URLParam(r, "paymentID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAdminRefund(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	// Empty body means full refund.
	_ = json.NewDecoder(r.Body).Decode(&body)

	res, err := s.payUC.Refund(r.Context(), chi.URLParam(r, "paymentID"), body.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAdminRevenue(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}
	total, err := s.payUC.RevenueByPeriod(r.Context(), period)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"period": period, "total": total})
}

// writeError maps domain rejections onto HTTP statuses and catalog messages.
// Raw internal errors never leak: anything unmapped becomes the generic
// internal envelope after logging.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var mismatch *domain.CodeMismatchError
	var lockout *domain.LockoutError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: s.msgs.T("payment.not_found"), ErrorType: "not_found"})
	case errors.Is(err, domain.ErrAmountOutOfRange):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: s.msgs.T("payment.validation.amount"), ErrorType: "validation"})
	case errors.Is(err, domain.ErrUnsupportedCard):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: s.msgs.T("payment.validation.card"), ErrorType: "validation"})
	case errors.Is(err, domain.ErrInvalidEmail):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: s.msgs.T("payment.validation.email"), ErrorType: "validation"})
	case errors.Is(err, domain.ErrPaymentNotPending):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: s.msgs.T("payment.not_pending"), ErrorType: "not_pending"})
	case errors.As(err, &lockout):
		minutes := lockout.SecondsRemaining/60 + 1
		writeJSON(w, http.StatusTooManyRequests, errorEnvelope{
			Error: s.msgs.T("otp.locked_out", minutes), ErrorType: "locked_out",
			RetryAfterSeconds: &lockout.SecondsRemaining,
		})
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorEnvelope{Error: s.msgs.T("otp.rate_limited"), ErrorType: "rate_limited"})
	case errors.Is(err, domain.ErrCodeAlreadyUsed):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: s.msgs.T("otp.already_used"), ErrorType: "already_used"})
	case errors.Is(err, domain.ErrCodeInvalidFormat):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: s.msgs.T("otp.invalid_format", s.otpLen), ErrorType: "invalid_format"})
	case errors.Is(err, domain.ErrCodeExpired):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: s.msgs.T("otp.expired"), ErrorType: "expired"})
	case errors.Is(err, domain.ErrMaxAttemptsExceeded):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: s.msgs.T("otp.max_attempts"), ErrorType: "max_attempts"})
	case errors.As(err, &mismatch):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{
			Error: s.msgs.T("otp.mismatch", mismatch.AttemptsRemaining), ErrorType: "invalid_code",
			AttemptsRemaining: &mismatch.AttemptsRemaining,
		})
	default:
		if ge, ok := domain.AsGatewayError(err); ok {
			s.writeGatewayError(w, ge)
			return
		}
		s.log.Error().Err(err).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: s.msgs.T("internal"), ErrorType: "internal"})
	}
}

func (s *Server) writeGatewayError(w http.ResponseWriter, ge *domain.GatewayError) {
	key := "gateway." + string(ge.Kind)
	status := http.StatusBadGateway
	switch ge.Kind {
	case domain.GatewayErrCardDeclined, domain.GatewayErrInvalidRequest:
		status = http.StatusBadRequest
	case domain.GatewayErrRateLimited:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorEnvelope{Error: s.msgs.T(key), ErrorType: string(ge.Kind)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
