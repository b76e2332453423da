package enums

// LockReason explains why merchant-facing features are gated off.
type LockReason string

const (
	LockReasonNone                  LockReason = "NONE"
	LockReasonInactive              LockReason = "INACTIVE"
	LockReasonSubscriptionSuspended LockReason = "SUBSCRIPTION_SUSPENDED"
)

// String implements fmt.Stringer.
func (r LockReason) String() string {
	return string(r)
}
