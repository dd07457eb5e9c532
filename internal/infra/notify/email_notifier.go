package notify

import (
	"bytes"
	"context"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"course-payment-portal/internal/config"
	"course-payment-portal/internal/domain/ports/adapter"
	"course-payment-portal/internal/infra/metrics"
)

var _ adapter.Notifier = (*EmailNotifier)(nil)

// EmailNotifier delivers OTP codes and receipts over SMTP. Best effort:
// it never returns an error, only a delivered flag.
type EmailNotifier struct {
	dialer *gomail.Dialer
	from   string
	log    *zerolog.Logger
}

func NewEmailNotifier(cfg config.SMTPConfig, logger *zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		log:    logger,
	}
}

func (n *EmailNotifier) Send(ctx context.Context, to, subject, body string, attachments ...adapter.Attachment) bool {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	for _, a := range attachments {
		a := a
		m.Attach(a.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := io.Copy(w, bytes.NewReader(a.Data))
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
		)
	}

	// The dialer has no ctx plumbing; honor cancellation by checking first.
	if ctx.Err() != nil {
		return false
	}
	if err := n.dialer.DialAndSend(m); err != nil {
		n.log.Warn().Err(err).Str("to", to).Str("subject", subject).Msg("email delivery failed")
		metrics.IncNotification("email", false)
		return false
	}
	metrics.IncNotification("email", true)
	return true
}
