package subscriptions

import (
	"context"
	"fmt"
	"math"
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

// Suspension reasons surfaced to merchants. They are stored verbatim on the
// subscription row and in the event log.
const (
	reasonTrialExpired        = "Trial expired"
	reasonMonthlyPeriodEnded  = "Monthly period ended"
	reasonInsufficientBalance = "Insufficient balance"
)

// BalanceReader supplies the current balance for deposit-mode checks.
type BalanceReader interface {
	Get(ctx context.Context, merchantID uuid.UUID) (*models.Balance, error)
}

// ServiceParams groups dependencies for the subscription manager.
type ServiceParams struct {
	DB       *dbpkg.Client
	Repo     Repository
	Balances BalanceReader
	Outbox   *outbox.Service
	Logger   *logger.Logger

	// TrialDays is the length of the free trial granted at signup.
	TrialDays int
	// MinBalance is the deposit-mode threshold below which the
	// subscription suspends.
	MinBalance decimal.Decimal

	// Now overrides the clock, used by tests.
	Now func() time.Time
}

// Service derives and reconciles merchant subscription state.
type Service struct {
	db         *dbpkg.Client
	repo       Repository
	balances   BalanceReader
	outbox     *outbox.Service
	logg       *logger.Logger
	trialDays  int
	minBalance decimal.Decimal
	now        func() time.Time
}

// Status is the derived subscription view returned to callers. IsValid
// reflects the derivation at read time, independent of the stored status.
type Status struct {
	Type          enums.SubscriptionType   `json:"type"`
	Status        enums.SubscriptionStatus `json:"status"`
	IsValid       bool                     `json:"is_valid"`
	DaysRemaining int                      `json:"days_remaining"`
	SuspendReason *string                  `json:"suspend_reason,omitempty"`
}

// LockStatus gates merchant-facing features. The account-level is_active
// flag takes precedence over subscription state.
type LockStatus struct {
	IsLocked     bool                         `json:"is_locked"`
	Reason       enums.LockReason             `json:"reason"`
	Subscription *models.MerchantSubscription `json:"subscription,omitempty"`
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repo is required")
	}
	if params.Balances == nil {
		return nil, fmt.Errorf("balance reader is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service is required")
	}
	trialDays := params.TrialDays
	if trialDays <= 0 {
		trialDays = 14
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:         params.DB,
		repo:       params.Repo,
		balances:   params.Balances,
		outbox:     params.Outbox,
		logg:       params.Logger,
		trialDays:  trialDays,
		minBalance: params.MinBalance,
		now:        now,
	}, nil
}

// StartTrial creates the subscription row for a new merchant.
func (s *Service) StartTrial(ctx context.Context, merchantID uuid.UUID) (*models.MerchantSubscription, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	existing, err := s.repo.GetByMerchant(ctx, merchantID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading subscription")
	}
	if existing != nil {
		return nil, apperrors.New(apperrors.CodeConflict, "merchant already has a subscription")
	}

	now := s.now().UTC()
	trialEnd := now.AddDate(0, 0, s.trialDays)
	sub := &models.MerchantSubscription{
		MerchantID:  merchantID,
		Type:        enums.SubscriptionTypeTrial,
		Status:      enums.SubscriptionStatusActive,
		TrialEndsAt: &trialEnd,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, sub); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return apperrors.New(apperrors.CodeConflict, "merchant already has a subscription")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating subscription")
		}
		days := s.trialDays
		event := &models.SubscriptionEvent{
			MerchantID: merchantID,
			Type:       enums.SubscriptionEventTrialStarted,
			PeriodFrom: &now,
			PeriodTo:   &trialEnd,
			DaysDelta:  &days,
		}
		if err := repo.InsertEvent(ctx, event); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "recording trial start")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// GetStatus returns the derived subscription status, reconciling the stored
// row first when the derivation disagrees with it.
func (s *Service) GetStatus(ctx context.Context, merchantID uuid.UUID) (*Status, error) {
	sub, err := s.Evaluate(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	d, err := s.derive(ctx, sub)
	if err != nil {
		return nil, err
	}
	return &Status{
		Type:          sub.Type,
		Status:        sub.Status,
		IsValid:       d.isValid,
		DaysRemaining: d.daysRemaining,
		SuspendReason: sub.SuspendReason,
	}, nil
}

// Evaluate re-derives subscription health and persists the transition when
// the stored status disagrees. Reads invoke it lazily; payments, fee
// deductions and switches invoke it eagerly.
func (s *Service) Evaluate(ctx context.Context, merchantID uuid.UUID) (*models.MerchantSubscription, error) {
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

	d, err := s.derive(ctx, sub)
	if err != nil {
		return nil, err
	}

	switch {
	case !d.isValid && sub.Status == enums.SubscriptionStatusActive:
		err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.suspendTx(ctx, tx, merchantID, d.reason)
		})
	case d.isValid && sub.Status == enums.SubscriptionStatusSuspended:
		err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.reactivateTx(ctx, tx, merchantID)
		})
	default:
		return sub, nil
	}
	if err != nil {
		return nil, err
	}

	sub, err = s.repo.GetByMerchant(ctx, merchantID)
	if err != nil || sub == nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "reloading subscription")
	}
	return sub, nil
}

// GetLockStatus reports whether merchant-facing features are gated off. An
// inactive account locks the merchant regardless of subscription health.
func (s *Service) GetLockStatus(ctx context.Context, merchantID uuid.UUID) (*LockStatus, error) {
	if merchantID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	merchant, err := s.repo.GetMerchant(ctx, merchantID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading merchant")
	}
	if merchant == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "merchant not found")
	}
	if !merchant.IsActive {
		sub, err := s.repo.GetByMerchant(ctx, merchantID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "loading subscription")
		}
		return &LockStatus{IsLocked: true, Reason: enums.LockReasonInactive, Subscription: sub}, nil
	}

	sub, err := s.Evaluate(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if sub.Status == enums.SubscriptionStatusSuspended {
		return &LockStatus{IsLocked: true, Reason: enums.LockReasonSubscriptionSuspended, Subscription: sub}, nil
	}
	return &LockStatus{IsLocked: false, Reason: enums.LockReasonNone, Subscription: sub}, nil
}

// ExtendPeriod extends the paid monthly window by whole calendar months,
// anchored at max(now, current period end), inside the caller's transaction.
// It moves the merchant onto the monthly model and reactivates a suspended
// subscription.
func (s *Service) ExtendPeriod(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, months int, paymentRequestID uuid.UUID) error {
	if tx == nil {
		return apperrors.New(apperrors.CodeInternal, "transaction required")
	}
	if merchantID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "merchant id is required")
	}
	if months <= 0 {
		return apperrors.New(apperrors.CodeValidation, "months must be positive")
	}

	repo := s.repo.WithTx(tx)
	sub, err := repo.GetByMerchantForUpdate(ctx, merchantID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "locking subscription")
	}
	if sub == nil {
		return apperrors.New(apperrors.CodeNotFound, "subscription not found")
	}

	now := s.now().UTC()
	anchor := now
	if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now) {
		anchor = sub.CurrentPeriodEnd.UTC()
	}
	newEnd := anchor.AddDate(0, months, 0)

	wasSuspended := sub.Status == enums.SubscriptionStatusSuspended
	sub.Type = enums.SubscriptionTypeMonthly
	sub.Status = enums.SubscriptionStatusActive
	sub.TrialEndsAt = nil
	sub.SuspendReason = nil
	sub.SuspendedAt = nil
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.After(now) {
		periodStart := anchor
		sub.CurrentPeriodStart = &periodStart
	}
	sub.CurrentPeriodEnd = &newEnd
	if err := repo.Save(ctx, sub); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "saving subscription")
	}

	days := daysBetween(anchor, newEnd)
	prID := paymentRequestID
	event := &models.SubscriptionEvent{
		MerchantID:       merchantID,
		Type:             enums.SubscriptionEventPeriodExtended,
		PeriodFrom:       &anchor,
		PeriodTo:         &newEnd,
		DaysDelta:        &days,
		PaymentRequestID: &prID,
	}
	if err := repo.InsertEvent(ctx, event); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "recording period extension")
	}

	if wasSuspended {
		if err := repo.InsertEvent(ctx, &models.SubscriptionEvent{
			MerchantID: merchantID,
			Type:       enums.SubscriptionEventReactivated,
		}); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "recording reactivation")
		}
		resumed := outbox.DomainEvent{
			EventType:     enums.EventSubscriptionResumed,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.SubscriptionResumedEvent{
				MerchantID:     merchantID,
				SubscriptionID: sub.ID,
				Type:           sub.Type,
				PeriodEnd:      sub.CurrentPeriodEnd,
				ResumedAt:      now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, resumed); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "emitting resume event")
		}
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"merchant_id": merchantID.String(),
			"months":      months,
			"period_end":  newEnd.Format(time.RFC3339),
		})
		s.logg.Info(logCtx, "subscription period extended")
	}
	return nil
}

type derivation struct {
	isValid       bool
	reason        string
	daysRemaining int
}

func (s *Service) derive(ctx context.Context, sub *models.MerchantSubscription) (derivation, error) {
	now := s.now().UTC()
	switch sub.Type {
	case enums.SubscriptionTypeTrial:
		if sub.TrialEndsAt == nil || !now.Before(*sub.TrialEndsAt) {
			return derivation{reason: reasonTrialExpired}, nil
		}
		return derivation{isValid: true, daysRemaining: ceilDays(sub.TrialEndsAt.Sub(now))}, nil
	case enums.SubscriptionTypeMonthly:
		if sub.CurrentPeriodEnd == nil || !now.Before(*sub.CurrentPeriodEnd) {
			return derivation{reason: reasonMonthlyPeriodEnded}, nil
		}
		return derivation{isValid: true, daysRemaining: ceilDays(sub.CurrentPeriodEnd.Sub(now))}, nil
	case enums.SubscriptionTypeDeposit:
		balance, err := s.balances.Get(ctx, sub.MerchantID)
		if err != nil {
			return derivation{}, err
		}
		if balance.Amount.LessThan(s.minBalance) {
			return derivation{reason: reasonInsufficientBalance}, nil
		}
		return derivation{isValid: true}, nil
	default:
		return derivation{}, apperrors.New(apperrors.CodeInternal, fmt.Sprintf("unknown subscription type %q", sub.Type))
	}
}

// suspendTx marks the subscription suspended under a row lock. A concurrent
// suspension wins quietly.
func (s *Service) suspendTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID, reason string) error {
	repo := s.repo.WithTx(tx)
	sub, err := repo.GetByMerchantForUpdate(ctx, merchantID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "locking subscription")
	}
	if sub == nil {
		return apperrors.New(apperrors.CodeNotFound, "subscription not found")
	}
	if sub.Status == enums.SubscriptionStatusSuspended {
		return nil
	}

	now := s.now().UTC()
	sub.Status = enums.SubscriptionStatusSuspended
	sub.SuspendReason = &reason
	sub.SuspendedAt = &now
	if err := repo.Save(ctx, sub); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "saving subscription")
	}
	if err := repo.InsertEvent(ctx, &models.SubscriptionEvent{
		MerchantID: merchantID,
		Type:       enums.SubscriptionEventSuspended,
		Reason:     &reason,
	}); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "recording suspension")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventSubscriptionSuspended,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Version:       1,
		OccurredAt:    now,
		Data: payloads.SubscriptionSuspendedEvent{
			MerchantID:     merchantID,
			SubscriptionID: sub.ID,
			Type:           sub.Type,
			Reason:         reason,
			SuspendedAt:    now,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "emitting suspend event")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"merchant_id": merchantID.String(),
			"reason":      reason,
		})
		s.logg.Warn(logCtx, "subscription suspended")
	}
	return nil
}

func (s *Service) reactivateTx(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	sub, err := repo.GetByMerchantForUpdate(ctx, merchantID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "locking subscription")
	}
	if sub == nil {
		return apperrors.New(apperrors.CodeNotFound, "subscription not found")
	}
	if sub.Status == enums.SubscriptionStatusActive {
		return nil
	}

	now := s.now().UTC()
	sub.Status = enums.SubscriptionStatusActive
	sub.SuspendReason = nil
	sub.SuspendedAt = nil
	if err := repo.Save(ctx, sub); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "saving subscription")
	}
	if err := repo.InsertEvent(ctx, &models.SubscriptionEvent{
		MerchantID: merchantID,
		Type:       enums.SubscriptionEventReactivated,
	}); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "recording reactivation")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventSubscriptionResumed,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Version:       1,
		OccurredAt:    now,
		Data: payloads.SubscriptionResumedEvent{
			MerchantID:     merchantID,
			SubscriptionID: sub.ID,
			Type:           sub.Type,
			PeriodEnd:      sub.CurrentPeriodEnd,
			ResumedAt:      now,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "emitting resume event")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithMerchantID(ctx, merchantID.String()), "subscription reactivated")
	}
	return nil
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}
