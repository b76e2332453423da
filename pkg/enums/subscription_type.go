package enums

import "fmt"

// SubscriptionType selects how a merchant pays for platform access.
type SubscriptionType string

const (
	SubscriptionTypeTrial   SubscriptionType = "trial"
	SubscriptionTypeMonthly SubscriptionType = "monthly"
	SubscriptionTypeDeposit SubscriptionType = "deposit"
)

var validSubscriptionTypes = []SubscriptionType{
	SubscriptionTypeTrial,
	SubscriptionTypeMonthly,
	SubscriptionTypeDeposit,
}

// String implements fmt.Stringer.
func (t SubscriptionType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t SubscriptionType) IsValid() bool {
	for _, candidate := range validSubscriptionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsPaid reports whether the type requires payment to stay active.
func (t SubscriptionType) IsPaid() bool {
	return t == SubscriptionTypeMonthly || t == SubscriptionTypeDeposit
}

// ParseSubscriptionType converts raw input into a SubscriptionType.
func ParseSubscriptionType(value string) (SubscriptionType, error) {
	for _, candidate := range validSubscriptionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription type %q", value)
}
