package notify

import (
	"context"

	"github.com/rs/zerolog"

	"course-payment-portal/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs instead of sending. Dev mode only: the OTP code lands
// in the log so the flow can be exercised without an SMTP server.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: logger}
}

func (n *NoopNotifier) Send(_ context.Context, to, subject, body string, _ ...adapter.Attachment) bool {
	n.log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("noop notifier")
	return true
}
