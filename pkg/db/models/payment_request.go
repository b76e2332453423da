package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tavolo-app/tavolo-backend/pkg/enums"
)

// PaymentRequest tracks a manual bank-transfer payment through its
// pending -> confirmed -> verified lifecycle. Bank details are snapshotted
// from config at creation so later config changes do not rewrite history.
// A partial unique index on (merchant_id) where status IN
// ('pending','confirmed') enforces at most one active request per merchant
// at the database level.
type PaymentRequest struct {
	ID                uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantID        uuid.UUID                  `gorm:"column:merchant_id;type:uuid;not null;index"`
	Type              enums.PaymentRequestType   `gorm:"column:type;type:payment_request_type;not null"`
	Status            enums.PaymentRequestStatus `gorm:"column:status;type:payment_request_status;not null;default:'pending'"`
	Amount            decimal.Decimal            `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          enums.Currency             `gorm:"column:currency;not null;default:'USD'"`
	MonthsRequested   int                        `gorm:"column:months_requested;not null;default:0"`
	BankName          string                     `gorm:"column:bank_name;not null"`
	BankAccountNumber string                     `gorm:"column:bank_account_number;not null"`
	BankAccountName   string                     `gorm:"column:bank_account_name;not null"`
	TransferNotes     *string                    `gorm:"column:transfer_notes"`
	TransferProofURL  *string                    `gorm:"column:transfer_proof_url"`
	ExpiresAt         time.Time                  `gorm:"column:expires_at;not null"`
	ConfirmedAt       *time.Time                 `gorm:"column:confirmed_at"`
	ProcessedAt       *time.Time                 `gorm:"column:processed_at"`
	ProcessedByUserID *uuid.UUID                 `gorm:"column:processed_by_user_id;type:uuid"`
	RejectReason      *string                    `gorm:"column:reject_reason"`
	CreatedAt         time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
