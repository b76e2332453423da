package orderfees

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tavolo-app/tavolo-backend/internal/balance"
	dbpkg "github.com/tavolo-app/tavolo-backend/pkg/db"
	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	apperrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

// BalanceService is the slice of the balance engine the fee hook needs.
type BalanceService interface {
	HasOrderFee(ctx context.Context, merchantID, orderID uuid.UUID) (bool, error)
	Adjust(ctx context.Context, params balance.AdjustParams) (*models.BalanceTransaction, error)
}

// SubscriptionService reads and re-evaluates subscription health.
type SubscriptionService interface {
	Evaluate(ctx context.Context, merchantID uuid.UUID) (*models.MerchantSubscription, error)
}

// ServiceParams groups dependencies for the order-fee hook.
type ServiceParams struct {
	Balances      BalanceService
	Subscriptions SubscriptionService
	Logger        *logger.Logger
}

// Service charges per-order fees against deposit-mode merchants. The order
// subsystem calls it once per completed order; duplicate deliveries are
// absorbed by the per-order ledger probe and unique index.
type Service struct {
	balances BalanceService
	subs     SubscriptionService
	logg     *logger.Logger
}

// NewService builds an order-fee service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Balances == nil {
		return nil, fmt.Errorf("balance service is required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service is required")
	}
	return &Service{
		balances: params.Balances,
		subs:     params.Subscriptions,
		logg:     params.Logger,
	}, nil
}

// OnOrderCompleted deducts the fee for a completed order. Non-deposit
// merchants are not charged per order. The deduction may push the balance
// negative (completed orders are not reversible); the follow-up evaluation
// then suspends the subscription.
func (s *Service) OnOrderCompleted(ctx context.Context, merchantID, orderID uuid.UUID, fee decimal.Decimal) error {
	if merchantID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if orderID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "order id is required")
	}
	if !fee.IsPositive() {
		return apperrors.New(apperrors.CodeValidation, "fee must be positive")
	}

	sub, err := s.subs.Evaluate(ctx, merchantID)
	if err != nil {
		return err
	}
	if sub.Type != enums.SubscriptionTypeDeposit {
		return nil
	}

	charged, err := s.balances.HasOrderFee(ctx, merchantID, orderID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "probing order fee")
	}
	if charged {
		return nil
	}

	description := "Order fee"
	orderRef := orderID
	_, err = s.balances.Adjust(ctx, balance.AdjustParams{
		MerchantID:    merchantID,
		Amount:        fee.Neg(),
		Type:          enums.BalanceTransactionTypeOrderFee,
		Description:   description,
		OrderID:       &orderRef,
		AllowNegative: true,
	})
	if err != nil {
		// A concurrent duplicate delivery lost the insert race; the fee
		// is already on the ledger.
		if dbpkg.IsUniqueViolation(err, "ux_balance_transactions_order_fee") {
			return nil
		}
		return err
	}

	// The deduction may have drained the balance below the threshold.
	if _, err := s.subs.Evaluate(ctx, merchantID); err != nil {
		return err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"merchant_id": merchantID.String(),
			"order_id":    orderID.String(),
			"fee":         fee.String(),
		})
		s.logg.Info(logCtx, "order fee deducted")
	}
	return nil
}
