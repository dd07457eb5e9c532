package security

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"course-payment-portal/internal/domain"
)

var supportedCardBrands = map[string]struct{}{
	"visa":       {},
	"mastercard": {},
	"amex":       {},
	"discover":   {},
	"diners":     {},
	"jcb":        {},
	"unionpay":   {},
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// PaymentValidator performs the pre-write sanity checks on initiate inputs.
// Messages derived from its errors are safe to show callers verbatim.
type PaymentValidator struct {
	min decimal.Decimal
	max decimal.Decimal
}

func NewPaymentValidator(minAmount, maxAmount decimal.Decimal) *PaymentValidator {
	return &PaymentValidator{min: minAmount, max: maxAmount}
}

// ValidateAmount checks the amount is positive and within configured bounds.
func (v *PaymentValidator) ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrAmountOutOfRange
	}
	if amount.LessThan(v.min) || amount.GreaterThan(v.max) {
		return domain.ErrAmountOutOfRange
	}
	return nil
}

// ValidateCardBrand checks the brand against the supported set.
func (v *PaymentValidator) ValidateCardBrand(brand string) error {
	if _, ok := supportedCardBrands[strings.ToLower(strings.TrimSpace(brand))]; !ok {
		return domain.ErrUnsupportedCard
	}
	return nil
}

// ValidateEmail applies a basic address-shape check.
func (v *PaymentValidator) ValidateEmail(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return domain.ErrInvalidEmail
	}
	return nil
}

// Sanitize trims and truncates free-text input.
func Sanitize(value string, maxLength int) string {
	value = strings.TrimSpace(value)
	if maxLength > 0 && len(value) > maxLength {
		value = value[:maxLength]
	}
	return value
}
