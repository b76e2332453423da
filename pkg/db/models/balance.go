package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tavolo-app/tavolo-backend/pkg/enums"
)

// Balance is the current-balance row per merchant. It is only ever
// mutated under a row lock together with an appended transaction.
type Balance struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID uuid.UUID       `gorm:"column:merchant_id;type:uuid;not null;unique"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null;default:0"`
	Currency   enums.Currency  `gorm:"column:currency;not null;default:'USD'"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
