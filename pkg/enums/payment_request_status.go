package enums

import "fmt"

// PaymentRequestStatus tracks a bank-transfer request through its workflow.
type PaymentRequestStatus string

const (
	PaymentRequestStatusPending   PaymentRequestStatus = "pending"
	PaymentRequestStatusConfirmed PaymentRequestStatus = "confirmed"
	PaymentRequestStatusVerified  PaymentRequestStatus = "verified"
	PaymentRequestStatusRejected  PaymentRequestStatus = "rejected"
	PaymentRequestStatusCancelled PaymentRequestStatus = "cancelled"
	PaymentRequestStatusExpired   PaymentRequestStatus = "expired"
)

var validPaymentRequestStatuses = []PaymentRequestStatus{
	PaymentRequestStatusPending,
	PaymentRequestStatusConfirmed,
	PaymentRequestStatusVerified,
	PaymentRequestStatusRejected,
	PaymentRequestStatusCancelled,
	PaymentRequestStatusExpired,
}

// String implements fmt.Stringer.
func (s PaymentRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PaymentRequestStatus) IsValid() bool {
	for _, candidate := range validPaymentRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the request still occupies the merchant's single
// active-request slot.
func (s PaymentRequestStatus) IsActive() bool {
	return s == PaymentRequestStatusPending || s == PaymentRequestStatusConfirmed
}

// IsTerminal reports whether the request can never transition again.
func (s PaymentRequestStatus) IsTerminal() bool {
	switch s {
	case PaymentRequestStatusVerified, PaymentRequestStatusRejected,
		PaymentRequestStatusCancelled, PaymentRequestStatusExpired:
		return true
	}
	return false
}

// ParsePaymentRequestStatus converts raw input into a PaymentRequestStatus.
func ParsePaymentRequestStatus(value string) (PaymentRequestStatus, error) {
	for _, candidate := range validPaymentRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment request status %q", value)
}
