package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tavolo-app/tavolo-backend/pkg/enums"
)

// SubscriptionEvent records an immutable subscription lifecycle event,
// written in the same transaction as the state change it describes. The
// history projector reads these alongside balance transactions.
type SubscriptionEvent struct {
	ID               uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID       uuid.UUID                   `gorm:"column:merchant_id;type:uuid;not null;index"`
	Type             enums.SubscriptionEventType `gorm:"column:type;type:subscription_event_type;not null"`
	FromType         *enums.SubscriptionType     `gorm:"column:from_type;type:subscription_type"`
	ToType           *enums.SubscriptionType     `gorm:"column:to_type;type:subscription_type"`
	PeriodFrom       *time.Time                  `gorm:"column:period_from"`
	PeriodTo         *time.Time                  `gorm:"column:period_to"`
	DaysDelta        *int                        `gorm:"column:days_delta"`
	Reason           *string                     `gorm:"column:reason"`
	PaymentRequestID *uuid.UUID                  `gorm:"column:payment_request_id;type:uuid"`
	CreatedByUserID  *uuid.UUID                  `gorm:"column:created_by_user_id;type:uuid"`
	CreatedAt        time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
