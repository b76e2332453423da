package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tavolo-app/tavolo-backend/pkg/enums"
)

// Merchant is the identity snapshot the billing engine needs. IsActive is an
// account-level override that locks the merchant regardless of subscription
// state.
type Merchant struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	Email     *string        `gorm:"column:email"`
	Phone     *string        `gorm:"column:phone"`
	Currency  enums.Currency `gorm:"column:currency;not null;default:'USD'"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
