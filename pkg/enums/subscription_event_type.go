package enums

import "fmt"

// SubscriptionEventType labels a persisted subscription lifecycle event.
type SubscriptionEventType string

const (
	SubscriptionEventTrialStarted   SubscriptionEventType = "trial_started"
	SubscriptionEventPeriodExtended SubscriptionEventType = "period_extended"
	SubscriptionEventTypeSwitched   SubscriptionEventType = "type_switched"
	SubscriptionEventSuspended      SubscriptionEventType = "suspended"
	SubscriptionEventReactivated    SubscriptionEventType = "reactivated"
)

var validSubscriptionEventTypes = []SubscriptionEventType{
	SubscriptionEventTrialStarted,
	SubscriptionEventPeriodExtended,
	SubscriptionEventTypeSwitched,
	SubscriptionEventSuspended,
	SubscriptionEventReactivated,
}

// String implements fmt.Stringer.
func (t SubscriptionEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t SubscriptionEventType) IsValid() bool {
	for _, candidate := range validSubscriptionEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSubscriptionEventType converts raw input into a SubscriptionEventType.
func ParseSubscriptionEventType(value string) (SubscriptionEventType, error) {
	for _, candidate := range validSubscriptionEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription event type %q", value)
}
