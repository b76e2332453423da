package enums

import "fmt"

// PaymentRequestType distinguishes what a verified bank transfer buys.
type PaymentRequestType string

const (
	PaymentRequestTypeDepositTopup   PaymentRequestType = "deposit_topup"
	PaymentRequestTypeMonthlyRenewal PaymentRequestType = "monthly_renewal"
)

var validPaymentRequestTypes = []PaymentRequestType{
	PaymentRequestTypeDepositTopup,
	PaymentRequestTypeMonthlyRenewal,
}

// String implements fmt.Stringer.
func (t PaymentRequestType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t PaymentRequestType) IsValid() bool {
	for _, candidate := range validPaymentRequestTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePaymentRequestType converts raw input into a PaymentRequestType.
func ParsePaymentRequestType(value string) (PaymentRequestType, error) {
	for _, candidate := range validPaymentRequestTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment request type %q", value)
}
