package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		otpVerifyRequests,
		otpVerifyDuration,
		notificationsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (pending/completed/failed/cancelled).",
		},
		[]string{"status"},
	)

	// Bounded reason label: confirmed, requires_action, confirmation_failed,
	// not_found, locked_out, already_used, invalid_format, expired,
	// max_attempts, rate_limited, mismatch, internal.
	otpVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verify_requests_total",
			Help: "OTP verify calls by bounded result reason.",
		},
		[]string{"reason"},
	)

	otpVerifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "otp_verify_duration_ms",
			Help:    "OTP verify latency distribution in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000},
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outbound notifications by kind and delivery result.",
		},
		[]string{"kind", "sent"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveVerify(reason string, elapsed time.Duration) {
	otpVerifyRequests.WithLabelValues(norm(reason)).Inc()
	otpVerifyDuration.Observe(float64(elapsed.Milliseconds()))
}

func IncNotification(kind string, sent bool) {
	v := "false"
	if sent {
		v = "true"
	}
	notificationsTotal.WithLabelValues(norm(kind), v).Inc()
}
