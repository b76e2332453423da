package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tavolo-app/tavolo-backend/pkg/enums"
)

// BalanceTransaction is the immutable ledger line behind every balance
// mutation. BalanceBefore and BalanceAfter snapshot the balance around the
// applied amount so the ledger can be replayed and audited. Rows are never
// updated or deleted.
type BalanceTransaction struct {
	ID               uuid.UUID                    `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BalanceID        uuid.UUID                    `gorm:"column:balance_id;type:uuid;not null;index"`
	MerchantID       uuid.UUID                    `gorm:"column:merchant_id;type:uuid;not null;index"`
	Type             enums.BalanceTransactionType `gorm:"column:type;type:balance_transaction_type;not null"`
	Amount           decimal.Decimal              `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceBefore    decimal.Decimal              `gorm:"column:balance_before;type:numeric(12,2);not null"`
	BalanceAfter     decimal.Decimal              `gorm:"column:balance_after;type:numeric(12,2);not null"`
	Currency         enums.Currency               `gorm:"column:currency;not null;default:'USD'"`
	Description      *string                      `gorm:"column:description"`
	OrderID          *uuid.UUID                   `gorm:"column:order_id;type:uuid;index"`
	PaymentRequestID *uuid.UUID                   `gorm:"column:payment_request_id;type:uuid"`
	CreatedByUserID  *uuid.UUID                   `gorm:"column:created_by_user_id;type:uuid"`
	CreatedAt        time.Time                    `gorm:"column:created_at;autoCreateTime"`
}

// BeforeCreate assigns a time-ordered (v7) id so `created_at DESC, id DESC`
// is a total order over the ledger even when timestamps tie.
func (t *BalanceTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}
