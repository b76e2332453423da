package enums

// OutboxEventType names a domain event queued for post-commit publishing.
type OutboxEventType string

const (
	EventBalanceAdjusted       OutboxEventType = "billing.balance.adjusted"
	EventPaymentVerified       OutboxEventType = "billing.payment.verified"
	EventPaymentRejected       OutboxEventType = "billing.payment.rejected"
	EventSubscriptionSuspended OutboxEventType = "billing.subscription.suspended"
	EventSubscriptionResumed   OutboxEventType = "billing.subscription.resumed"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateBalance        OutboxAggregateType = "balance"
	AggregatePaymentRequest OutboxAggregateType = "payment_request"
	AggregateSubscription   OutboxAggregateType = "merchant_subscription"
)

// OutboxDLQErrorReason explains why a row was parked in the DLQ.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
