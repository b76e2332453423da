package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tavolo-app/tavolo-backend/pkg/enums"
)

// BalanceAdjustedEvent is emitted for every committed balance mutation.
type BalanceAdjustedEvent struct {
	MerchantID    uuid.UUID                    `json:"merchant_id"`
	TransactionID uuid.UUID                    `json:"transaction_id"`
	Type          enums.BalanceTransactionType `json:"type"`
	Amount        decimal.Decimal              `json:"amount"`
	BalanceAfter  decimal.Decimal              `json:"balance_after"`
	OrderID       *uuid.UUID                   `json:"order_id,omitempty"`
}

// PaymentVerifiedEvent signals an admin verified a bank transfer and the
// associated credit or renewal has been applied.
type PaymentVerifiedEvent struct {
	PaymentRequestID uuid.UUID                `json:"payment_request_id"`
	MerchantID       uuid.UUID                `json:"merchant_id"`
	Type             enums.PaymentRequestType `json:"type"`
	Amount           decimal.Decimal          `json:"amount"`
	VerifiedBy       uuid.UUID                `json:"verified_by"`
	VerifiedAt       time.Time                `json:"verified_at"`
}

// PaymentRejectedEvent signals an admin rejected a confirmed transfer.
type PaymentRejectedEvent struct {
	PaymentRequestID uuid.UUID       `json:"payment_request_id"`
	MerchantID       uuid.UUID       `json:"merchant_id"`
	Amount           decimal.Decimal `json:"amount"`
	Reason           string          `json:"reason,omitempty"`
	RejectedAt       time.Time       `json:"rejected_at"`
}

// SubscriptionSuspendedEvent is emitted when a merchant loses feature access.
type SubscriptionSuspendedEvent struct {
	MerchantID     uuid.UUID              `json:"merchant_id"`
	SubscriptionID uuid.UUID              `json:"subscription_id"`
	Type           enums.SubscriptionType `json:"type"`
	Reason         string                 `json:"reason,omitempty"`
	SuspendedAt    time.Time              `json:"suspended_at"`
}

// SubscriptionResumedEvent is emitted when a suspended merchant is restored.
type SubscriptionResumedEvent struct {
	MerchantID     uuid.UUID              `json:"merchant_id"`
	SubscriptionID uuid.UUID              `json:"subscription_id"`
	Type           enums.SubscriptionType `json:"type"`
	PeriodEnd      *time.Time             `json:"period_end,omitempty"`
	ResumedAt      time.Time              `json:"resumed_at"`
}
