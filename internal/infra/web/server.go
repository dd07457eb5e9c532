package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"course-payment-portal/internal/domain/ports/adapter"
	"course-payment-portal/internal/infra/i18n"
	"course-payment-portal/internal/usecase"
)

type Server struct {
	payUC   usecase.PaymentUseCase
	gateway adapter.PaymentGateway
	auth    *AuthManager
	msgs    *i18n.Translator
	otpLen  int
	log     *zerolog.Logger
	srv     *http.Server
}

func NewServer(
	payUC usecase.PaymentUseCase,
	gateway adapter.PaymentGateway,
	auth *AuthManager,
	msgs *i18n.Translator,
	otpLen int,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		payUC:   payUC,
		gateway: gateway,
		auth:    auth,
		msgs:    msgs,
		otpLen:  otpLen,
		log:     logger,
	}
}

// Router assembles the public and staff route trees.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/initiate", s.handleInitiate)
		r.Post("/verify-otp", s.handleVerifyOTP)
		r.Post("/{paymentID}/resend-otp", s.handleResendOTP)
	})
	r.Post("/webhook/stripe", s.handleWebhook)

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(s.auth.StaffOnly)
		r.Get("/payments", s.handleAdminListPayments)
		r.Get("/payments/{paymentID}", s.handleAdminGetPayment)
		r.Post("/payments/{paymentID}/refund", s.handleAdminRefund)
		r.Get("/stats/revenue", s.handleAdminRevenue)
	})

	return r
}

func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}
	s.log.Info().Int("port", port).Msg("http server listening")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
