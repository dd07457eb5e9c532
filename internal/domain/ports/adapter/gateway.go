package adapter

import "context"

// IntentResult is the provider handle for a freshly created payment intent.
type IntentResult struct {
	IntentID     string
	ClientSecret string
}

// ConfirmStatus is the bounded outcome set for a confirm/retrieve call.
// Anything the provider reports outside this set maps to ConfirmStatusOther.
type ConfirmStatus string

const (
	ConfirmStatusSucceeded      ConfirmStatus = "succeeded"
	ConfirmStatusRequiresAction ConfirmStatus = "requires_action"
	ConfirmStatusOther          ConfirmStatus = "other"
)

// ConfirmResult is decoded once at the gateway boundary so callers never
// dig through optional provider fields.
type ConfirmResult struct {
	Status       ConfirmStatus
	ChargeID     string // set when Status == succeeded
	ClientSecret string // set when Status == requires_action
	RawStatus    string // provider status string, for logs
}

// RefundResult captures a provider-agnostic refund response.
type RefundResult struct {
	RefundID string
	Status   string
}

// WebhookEvent is a verified provider event.
type WebhookEvent struct {
	ID       string
	Type     string // e.g. "payment_intent.succeeded"
	IntentID string
	ChargeID string
}

// PaymentGateway is the hex port for card-payment providers.
// Every method returns *domain.GatewayError (wrapped) on provider failure.
type PaymentGateway interface {
	Name() string

	// CreateIntent registers a charge attempt for the amount in minor units.
	CreateIntent(ctx context.Context, amountMinor int64, currency string, paymentMethodRef string, meta map[string]string) (*IntentResult, error)

	// ConfirmIntent asks the provider to capture a previously created intent.
	ConfirmIntent(ctx context.Context, intentID string) (*ConfirmResult, error)

	// RetrieveIntent reads the current provider-side state of an intent.
	RetrieveIntent(ctx context.Context, intentID string) (*ConfirmResult, error)

	// Refund refunds a captured charge; amountMinor <= 0 means full refund.
	Refund(ctx context.Context, chargeID string, amountMinor int64) (*RefundResult, error)

	// VerifyWebhook checks the provider signature and decodes the event.
	VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}
