package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	apperrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
)

// SwitchOptions reports which billing models the merchant may switch into.
type SwitchOptions struct {
	CurrentType        enums.SubscriptionType `json:"current_type"`
	CanSwitchToMonthly bool                   `json:"can_switch_to_monthly"`
	CanSwitchToDeposit bool                   `json:"can_switch_to_deposit"`
}

// CanManualSwitch reports the switch targets currently available. Monthly
// requires an unexpired paid period (bought through a payment request);
// deposit requires a positive balance so the merchant is not suspended on
// the next status read.
func (s *Service) CanManualSwitch(ctx context.Context, merchantID uuid.UUID) (*SwitchOptions, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	sub, err := s.repo.GetByMerchant(ctx, merchantID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading subscription")
	}
	if sub == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "subscription not found")
	}
	balance, err := s.balances.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	opts := &SwitchOptions{
		CurrentType:        sub.Type,
		CanSwitchToMonthly: sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now),
		CanSwitchToDeposit: balance.Amount.IsPositive(),
	}
	if sub.Type == enums.SubscriptionTypeMonthly {
		opts.CanSwitchToMonthly = false
	}
	if sub.Type == enums.SubscriptionTypeDeposit {
		opts.CanSwitchToDeposit = false
	}
	return opts, nil
}

// ManualSwitch moves the merchant between paid billing models. It never
// touches the balance, clears trial_ends_at, and leaves current_period_end
// in place so a later switch back to monthly can reuse the remaining period.
func (s *Service) ManualSwitch(ctx context.Context, merchantID uuid.UUID, newType enums.SubscriptionType, actingUserID *uuid.UUID) (*models.MerchantSubscription, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if !newType.IsPaid() {
		return nil, apperrors.New(apperrors.CodeValidation, "can only switch to monthly or deposit")
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.GetByMerchantForUpdate(ctx, merchantID)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "locking subscription")
		}
		if sub == nil {
			return apperrors.New(apperrors.CodeNotFound, "subscription not found")
		}
		if sub.Type == newType {
			return apperrors.New(apperrors.CodeValidation, "already on the requested subscription model")
		}

		now := s.now().UTC()
		switch newType {
		case enums.SubscriptionTypeMonthly:
			if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.After(now) {
				return apperrors.New(apperrors.CodeValidation, "no paid period available; renew via a payment request first")
			}
		case enums.SubscriptionTypeDeposit:
			balance, err := s.balances.Get(ctx, merchantID)
			if err != nil {
				return err
			}
			if !balance.Amount.IsPositive() {
				return apperrors.New(apperrors.CodeValidation, "top up your balance before switching to deposit")
			}
		}

		fromType := sub.Type
		sub.Type = newType
		sub.TrialEndsAt = nil
		if err := repo.Save(ctx, sub); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "saving subscription")
		}

		toType := newType
		event := &models.SubscriptionEvent{
			MerchantID:      merchantID,
			Type:            enums.SubscriptionEventTypeSwitched,
			FromType:        &fromType,
			ToType:          &toType,
			CreatedByUserID: actingUserID,
		}
		if err := repo.InsertEvent(ctx, event); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "recording type switch")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Eager re-check: the new model may already be unhealthy (or healthy
	// again) under the current balance/period.
	sub, err := s.Evaluate(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"merchant_id": merchantID.String(),
			"type":        sub.Type.String(),
		})
		s.logg.Info(logCtx, "subscription model switched")
	}
	return sub, nil
}
