package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tavolo-app/tavolo-backend/pkg/enums"
)

// MerchantSubscription holds the single subscription row per merchant,
// created with the merchant and never deleted. TrialEndsAt is set while the
// merchant is on trial; CurrentPeriodEnd tracks the paid monthly window and
// is preserved across a switch to the deposit model.
type MerchantSubscription struct {
	ID                 uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID         uuid.UUID                `gorm:"column:merchant_id;type:uuid;not null;unique"`
	Type               enums.SubscriptionType   `gorm:"column:type;type:subscription_type;not null;default:'trial'"`
	Status             enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	TrialEndsAt        *time.Time               `gorm:"column:trial_ends_at"`
	CurrentPeriodStart *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd   *time.Time               `gorm:"column:current_period_end"`
	SuspendReason      *string                  `gorm:"column:suspend_reason"`
	SuspendedAt        *time.Time               `gorm:"column:suspended_at"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
