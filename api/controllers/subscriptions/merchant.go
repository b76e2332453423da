package subscriptions

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tavolo-app/tavolo-backend/api/controllers/merchantcontext"
	"github.com/tavolo-app/tavolo-backend/api/responses"
	"github.com/tavolo-app/tavolo-backend/api/validators"
	subscriptionsvc "github.com/tavolo-app/tavolo-backend/internal/subscriptions"
	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	pkgerrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

// Service is the subscription surface the merchant controllers need.
type Service interface {
	GetStatus(ctx context.Context, merchantID uuid.UUID) (*subscriptionsvc.Status, error)
	GetLockStatus(ctx context.Context, merchantID uuid.UUID) (*subscriptionsvc.LockStatus, error)
	CanManualSwitch(ctx context.Context, merchantID uuid.UUID) (*subscriptionsvc.SwitchOptions, error)
	ManualSwitch(ctx context.Context, merchantID uuid.UUID, newType enums.SubscriptionType, actingUserID *uuid.UUID) (*models.MerchantSubscription, error)
}

type subscriptionView struct {
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	SuspendReason      *string    `json:"suspend_reason,omitempty"`
	SuspendedAt        *time.Time `json:"suspended_at,omitempty"`
}

func toSubscriptionView(sub *models.MerchantSubscription) *subscriptionView {
	if sub == nil {
		return nil
	}
	return &subscriptionView{
		Type:               string(sub.Type),
		Status:             string(sub.Status),
		TrialEndsAt:        sub.TrialEndsAt,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		SuspendReason:      sub.SuspendReason,
		SuspendedAt:        sub.SuspendedAt,
	}
}

// MerchantSubscriptionStatus reports the derived subscription state. Reading
// the status reconciles it first, so an expired trial comes back suspended.
func MerchantSubscriptionStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := svc.GetStatus(ctx, merchantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

type lockStatusResponse struct {
	IsLocked     bool              `json:"is_locked"`
	Reason       string            `json:"reason"`
	Subscription *subscriptionView `json:"subscription,omitempty"`
}

// MerchantLockStatus answers the one question the ordering surface asks:
// may this merchant receive orders right now, and if not, why.
func MerchantLockStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		lock, err := svc.GetLockStatus(ctx, merchantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, lockStatusResponse{
			IsLocked:     lock.IsLocked,
			Reason:       string(lock.Reason),
			Subscription: toSubscriptionView(lock.Subscription),
		})
	}
}

// MerchantSwitchOptions reports which billing models the merchant may switch
// to manually.
func MerchantSwitchOptions(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		options, err := svc.CanManualSwitch(ctx, merchantID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, options)
	}
}

type switchRequest struct {
	Type string `json:"type" validate:"required"`
}

// MerchantSwitch moves the merchant between the monthly and deposit models.
func MerchantSwitch(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		merchantID, err := merchantcontext.ResolveMerchantID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body switchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		newType, err := enums.ParseSubscriptionType(body.Type)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
			return
		}
		sub, err := svc.ManualSwitch(ctx, merchantID, newType, merchantcontext.ResolveUserID(r))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSubscriptionView(sub))
	}
}
