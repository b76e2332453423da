package enums

import "fmt"

// HistoryFlowType groups merchant history entries into business flows.
type HistoryFlowType string

const (
	HistoryFlowPaymentVerification    HistoryFlowType = "payment_verification"
	HistoryFlowOrderFee               HistoryFlowType = "order_fee"
	HistoryFlowBalanceAdjustment      HistoryFlowType = "balance_adjustment"
	HistoryFlowSubscriptionAdjustment HistoryFlowType = "subscription_adjustment"
)

var validHistoryFlowTypes = []HistoryFlowType{
	HistoryFlowPaymentVerification,
	HistoryFlowOrderFee,
	HistoryFlowBalanceAdjustment,
	HistoryFlowSubscriptionAdjustment,
}

// String implements fmt.Stringer.
func (t HistoryFlowType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t HistoryFlowType) IsValid() bool {
	for _, candidate := range validHistoryFlowTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseHistoryFlowType converts raw input into a HistoryFlowType.
func ParseHistoryFlowType(value string) (HistoryFlowType, error) {
	for _, candidate := range validHistoryFlowTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid history flow type %q", value)
}
