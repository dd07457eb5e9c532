package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"course-payment-portal/internal/domain"
	"course-payment-portal/internal/domain/ports/adapter"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// StripeGateway implements adapter.PaymentGateway with direct HTTP calls
// against the Stripe-shaped REST API. Provider responses are decoded here,
// once; nothing past this boundary sees raw provider payloads.
type StripeGateway struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

func NewStripeGateway(secretKey, webhookSecret, baseURL string) *StripeGateway {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &StripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		client:        &http.Client{Timeout: 20 * time.Second},
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

// intentResponse is the subset of the provider intent object we consume.
type intentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
	LatestCharge string `json:"latest_charge"`
	Charges      struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	} `json:"charges"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, paymentMethodRef string, meta map[string]string) (*adapter.IntentResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", strings.ToLower(currency))
	if paymentMethodRef != "" {
		form.Set("payment_method", paymentMethodRef)
	}
	for k, v := range meta {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var out intentResponse
	if err := g.post(ctx, "/payment_intents", form, &out); err != nil {
		return nil, err
	}
	return &adapter.IntentResult{IntentID: out.ID, ClientSecret: out.ClientSecret}, nil
}

func (g *StripeGateway) ConfirmIntent(ctx context.Context, intentID string) (*adapter.ConfirmResult, error) {
	var out intentResponse
	if err := g.post(ctx, "/payment_intents/"+url.PathEscape(intentID)+"/confirm", url.Values{}, &out); err != nil {
		return nil, err
	}
	return decodeConfirm(&out), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, intentID string) (*adapter.ConfirmResult, error) {
	var out intentResponse
	if err := g.get(ctx, "/payment_intents/"+url.PathEscape(intentID), &out); err != nil {
		return nil, err
	}
	return decodeConfirm(&out), nil
}

func (g *StripeGateway) Refund(ctx context.Context, chargeID string, amountMinor int64) (*adapter.RefundResult, error) {
	form := url.Values{}
	form.Set("charge", chargeID)
	if amountMinor > 0 {
		form.Set("amount", strconv.FormatInt(amountMinor, 10))
	}
	var out refundResponse
	if err := g.post(ctx, "/refunds", form, &out); err != nil {
		return nil, err
	}
	return &adapter.RefundResult{RefundID: out.ID, Status: out.Status}, nil
}

// decodeConfirm folds the provider status vocabulary into the bounded
// ConfirmStatus set.
func decodeConfirm(in *intentResponse) *adapter.ConfirmResult {
	res := &adapter.ConfirmResult{RawStatus: in.Status}
	switch in.Status {
	case "succeeded":
		res.Status = adapter.ConfirmStatusSucceeded
		res.ChargeID = in.LatestCharge
		if res.ChargeID == "" && len(in.Charges.Data) > 0 {
			res.ChargeID = in.Charges.Data[0].ID
		}
	case "requires_action", "requires_source_action":
		res.Status = adapter.ConfirmStatusRequiresAction
		res.ClientSecret = in.ClientSecret
	default:
		res.Status = adapter.ConfirmStatusOther
	}
	return res
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return &domain.GatewayError{Kind: domain.GatewayErrUnknown, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return g.do(req, out)
}

func (g *StripeGateway) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return &domain.GatewayError{Kind: domain.GatewayErrUnknown, Message: err.Error()}
	}
	return g.do(req, out)
}

func (g *StripeGateway) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return &domain.GatewayError{Kind: domain.GatewayErrConnection, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.GatewayError{Kind: domain.GatewayErrConnection, Message: err.Error()}
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.GatewayError{Kind: domain.GatewayErrUnknown, Message: fmt.Sprintf("unmarshal response: %v", err)}
	}
	return nil
}

// decodeError maps a provider error payload onto the bounded kind set.
func decodeError(status int, body []byte) *domain.GatewayError {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return &domain.GatewayError{Kind: domain.GatewayErrUnknown, Message: fmt.Sprintf("http %d: %s", status, body)}
	}
	msg := er.Error.Message
	switch er.Error.Type {
	case "card_error":
		return &domain.GatewayError{Kind: domain.GatewayErrCardDeclined, Message: msg}
	case "rate_limit_error":
		return &domain.GatewayError{Kind: domain.GatewayErrRateLimited, Message: msg}
	case "invalid_request_error":
		return &domain.GatewayError{Kind: domain.GatewayErrInvalidRequest, Message: msg}
	case "authentication_error":
		return &domain.GatewayError{Kind: domain.GatewayErrAuth, Message: msg}
	default:
		if status == http.StatusTooManyRequests {
			return &domain.GatewayError{Kind: domain.GatewayErrRateLimited, Message: msg}
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return &domain.GatewayError{Kind: domain.GatewayErrAuth, Message: msg}
		}
		return &domain.GatewayError{Kind: domain.GatewayErrUnknown, Message: msg}
	}
}

// webhookEvent is the provider event envelope we consume.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID           string `json:"id"`
			Object       string `json:"object"`
			LatestCharge string `json:"latest_charge"`
		} `json:"object"`
	} `json:"data"`
}

const signatureTolerance = 5 * time.Minute

// VerifyWebhook checks the `t=<unix>,v1=<hex hmac>` signature scheme over
// "<t>.<payload>" and rejects stale timestamps.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*adapter.WebhookEvent, error) {
	var ts string
	var sigs []string
	for _, part := range strings.Split(signatureHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts == "" || len(sigs) == 0 {
		return nil, &domain.GatewayError{Kind: domain.GatewayErrInvalidRequest, Message: "malformed signature header"}
	}
	tsUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, &domain.GatewayError{Kind: domain.GatewayErrInvalidRequest, Message: "malformed signature timestamp"}
	}
	if d := time.Since(time.Unix(tsUnix, 0)); d > signatureTolerance || d < -signatureTolerance {
		return nil, &domain.GatewayError{Kind: domain.GatewayErrInvalidRequest, Message: "signature timestamp outside tolerance"}
	}

	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	valid := false
	for _, s := range sigs {
		if hmac.Equal([]byte(expected), []byte(s)) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, &domain.GatewayError{Kind: domain.GatewayErrInvalidRequest, Message: "signature mismatch"}
	}

	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, &domain.GatewayError{Kind: domain.GatewayErrInvalidRequest, Message: "malformed event payload"}
	}
	out := &adapter.WebhookEvent{ID: ev.ID, Type: ev.Type}
	if ev.Data.Object.Object == "payment_intent" {
		out.IntentID = ev.Data.Object.ID
		out.ChargeID = ev.Data.Object.LatestCharge
	}
	return out, nil
}
