package payment

import (
	"context"
	"fmt"
	"sync/atomic"

	"course-payment-portal/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway accepts everything. Dev mode only.
type NoopGateway struct {
	seq atomic.Int64
}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateIntent(_ context.Context, _ int64, _ string, _ string, _ map[string]string) (*adapter.IntentResult, error) {
	n := g.seq.Add(1)
	return &adapter.IntentResult{
		IntentID:     fmt.Sprintf("pi_noop_%d", n),
		ClientSecret: fmt.Sprintf("pi_noop_%d_secret", n),
	}, nil
}

func (g *NoopGateway) ConfirmIntent(_ context.Context, intentID string) (*adapter.ConfirmResult, error) {
	return &adapter.ConfirmResult{
		Status:    adapter.ConfirmStatusSucceeded,
		ChargeID:  "ch_" + intentID,
		RawStatus: "succeeded",
	}, nil
}

func (g *NoopGateway) RetrieveIntent(ctx context.Context, intentID string) (*adapter.ConfirmResult, error) {
	return g.ConfirmIntent(ctx, intentID)
}

func (g *NoopGateway) Refund(_ context.Context, chargeID string, _ int64) (*adapter.RefundResult, error) {
	return &adapter.RefundResult{RefundID: "re_" + chargeID, Status: "succeeded"}, nil
}

func (g *NoopGateway) VerifyWebhook(_ []byte, _ string) (*adapter.WebhookEvent, error) {
	return &adapter.WebhookEvent{Type: "noop"}, nil
}
