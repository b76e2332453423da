package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

const defaultReconcileLimit = 250

// SubscriptionReconcileJobParams configures the subscription reconcile job.
type SubscriptionReconcileJobParams struct {
	Logger        *logger.Logger
	Repository    reconcileCandidateRepo
	Subscriptions subscriptionEvaluator
	Limit         int
	Now           func() time.Time
}

type reconcileCandidateRepo interface {
	ListLapsedActiveMerchants(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type subscriptionEvaluator interface {
	Evaluate(ctx context.Context, merchantID uuid.UUID) (*models.MerchantSubscription, error)
}

// NewSubscriptionReconcileJob builds the job that re-evaluates subscriptions
// whose trial or paid period lapsed while still marked active. Reads already
// reconcile lazily; the sweep catches merchants nobody has read recently so
// suspensions and their events are recorded near the moment they became due.
func NewSubscriptionReconcileJob(params SubscriptionReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &subscriptionReconcileJob{
		logg:  params.Logger,
		repo:  params.Repository,
		subs:  params.Subscriptions,
		now:   now,
		limit: limit,
	}, nil
}

type subscriptionReconcileJob struct {
	logg  *logger.Logger
	repo  reconcileCandidateRepo
	subs  subscriptionEvaluator
	now   func() time.Time
	limit int
}

func (j *subscriptionReconcileJob) Name() string { return "subscription-reconcile" }

func (j *subscriptionReconcileJob) Run(ctx context.Context) error {
	candidates, err := j.repo.ListLapsedActiveMerchants(ctx, j.now().UTC(), j.limit)
	if err != nil {
		return fmt.Errorf("list lapsed subscriptions: %w", err)
	}
	var errs error
	reconciled := 0
	for _, merchantID := range candidates {
		if _, err := j.subs.Evaluate(ctx, merchantID); err != nil {
			logCtx := j.logg.WithField(ctx, "merchant_id", merchantID)
			j.logg.Error(logCtx, "subscription reconcile failed", err)
			errs = multierr.Append(errs, fmt.Errorf("reconcile merchant %s: %w", merchantID, err))
			continue
		}
		reconciled++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"reconciled": reconciled,
	})
	j.logg.Info(logCtx, "subscription reconcile loop complete")
	return errs
}
