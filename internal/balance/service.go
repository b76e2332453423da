package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/tavolo-app/tavolo-backend/pkg/db"
	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	apperrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
	"github.com/tavolo-app/tavolo-backend/pkg/outbox"
	"github.com/tavolo-app/tavolo-backend/pkg/outbox/payloads"
)

// ServiceParams groups dependencies for the balance service.
type ServiceParams struct {
	DB       *dbpkg.Client
	Repo     Repository
	Outbox   *outbox.Service
	Logger   *logger.Logger
	Currency enums.Currency
}

// Service owns the merchant balance and its append-only transaction ledger.
type Service struct {
	db       *dbpkg.Client
	repo     Repository
	outbox   *outbox.Service
	logg     *logger.Logger
	currency enums.Currency
}

// AdjustParams describes a single balance mutation.
type AdjustParams struct {
	MerchantID       uuid.UUID
	Amount           decimal.Decimal
	Type             enums.BalanceTransactionType
	Description      string
	OrderID          *uuid.UUID
	PaymentRequestID *uuid.UUID
	ActingUserID     *uuid.UUID

	// AllowNegative lets the balance go below zero. Order fees use it so a
	// completed order is always charged; top-ups and manual debits do not.
	AllowNegative bool
}

// NewService builds a balance service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repo is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	return &Service{
		db:       params.DB,
		repo:     params.Repo,
		outbox:   params.Outbox,
		logg:     params.Logger,
		currency: currency,
	}, nil
}

// Get returns the merchant balance, materializing a zero-value view for
// merchants that have never been adjusted.
func (s *Service) Get(ctx context.Context, merchantID uuid.UUID) (*models.Balance, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	row, err := s.repo.Get(ctx, merchantID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading balance")
	}
	if row == nil {
		return &models.Balance{
			MerchantID: merchantID,
			Amount:     decimal.Zero,
			Currency:   s.currency,
		}, nil
	}
	return row, nil
}

// Adjust applies a balance mutation in its own transaction.
func (s *Service) Adjust(ctx context.Context, params AdjustParams) (*models.BalanceTransaction, error) {
	var txn *models.BalanceTransaction
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := s.ApplyTx(ctx, tx, params)
		if err != nil {
			return err
		}
		txn = applied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ApplyTx applies a balance mutation inside the caller's transaction. The
// balance row is locked FOR UPDATE so concurrent adjustments serialize, and
// the appended transaction snapshots the balance before and after.
func (s *Service) ApplyTx(ctx context.Context, tx *gorm.DB, params AdjustParams) (*models.BalanceTransaction, error) {
	if tx == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	if params.MerchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if !params.Type.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", params.Type))
	}
	if params.Amount.IsZero() {
		return nil, apperrors.New(apperrors.CodeValidation, "amount must be non-zero")
	}

	repo := s.repo.WithTx(tx)

	row, err := repo.GetForUpdate(ctx, params.MerchantID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "locking balance")
	}
	if row == nil {
		exists, err := repo.MerchantExists(ctx, params.MerchantID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "probing merchant")
		}
		if !exists {
			return nil, apperrors.New(apperrors.CodeNotFound, "merchant not found")
		}
		row = &models.Balance{
			MerchantID: params.MerchantID,
			Amount:     decimal.Zero,
			Currency:   s.currency,
		}
		if err := repo.Create(ctx, row); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				// Another tx created the row first; retake the lock.
				row, err = repo.GetForUpdate(ctx, params.MerchantID)
				if err != nil || row == nil {
					return nil, apperrors.Wrap(apperrors.CodeInternal, err, "relocking balance")
				}
			} else {
				return nil, apperrors.Wrap(apperrors.CodeInternal, err, "creating balance")
			}
		}
	}

	before := row.Amount
	after := before.Add(params.Amount)
	if after.IsNegative() && !params.AllowNegative {
		return nil, apperrors.New(apperrors.CodeInsufficient, "balance would go negative").
			WithDetails(map[string]string{
				"balance": before.String(),
				"amount":  params.Amount.String(),
			})
	}

	row.Amount = after
	if err := repo.Save(ctx, row); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "saving balance")
	}

	var description *string
	if params.Description != "" {
		description = &params.Description
	}
	txn := &models.BalanceTransaction{
		BalanceID:        row.ID,
		MerchantID:       params.MerchantID,
		Type:             params.Type,
		Amount:           params.Amount,
		BalanceBefore:    before,
		BalanceAfter:     after,
		Currency:         row.Currency,
		Description:      description,
		OrderID:          params.OrderID,
		PaymentRequestID: params.PaymentRequestID,
		CreatedByUserID:  params.ActingUserID,
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "appending balance transaction")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventBalanceAdjusted,
		AggregateType: enums.AggregateBalance,
		AggregateID:   row.ID,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		Data: payloads.BalanceAdjustedEvent{
			MerchantID:    params.MerchantID,
			TransactionID: txn.ID,
			Type:          params.Type,
			Amount:        params.Amount,
			BalanceAfter:  after,
			OrderID:       params.OrderID,
		},
	}
	if params.ActingUserID != nil {
		event.Actor = &outbox.ActorRef{UserID: *params.ActingUserID, MerchantID: &params.MerchantID}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "emitting balance event")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"merchant_id":   params.MerchantID.String(),
			"type":          params.Type.String(),
			"amount":        params.Amount.String(),
			"balance_after": after.String(),
		})
		s.logg.Info(logCtx, "balance adjusted")
	}
	return txn, nil
}

// HasOrderFee reports whether an order fee was already charged for the order.
func (s *Service) HasOrderFee(ctx context.Context, merchantID, orderID uuid.UUID) (bool, error) {
	if merchantID == uuid.Nil {
		return false, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if orderID == uuid.Nil {
		return false, apperrors.New(apperrors.CodeValidation, "order id is required")
	}
	return s.repo.HasOrderFee(ctx, merchantID, orderID)
}

// ListTransactions pages through the merchant's ledger, newest first.
func (s *Service) ListTransactions(ctx context.Context, merchantID uuid.UUID, filter TransactionFilter) ([]models.BalanceTransaction, int64, error) {
	if merchantID == uuid.Nil {
		return nil, 0, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, 0, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", *filter.Type))
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListTransactions(ctx, merchantID, filter)
}
