package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/logger"
)

func TestSubscriptionReconcileJobEvaluatesCandidates(t *testing.T) {
	now := time.Date(2026, 4, 15, 3, 0, 0, 0, time.UTC)
	candidates := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	repo := &fakeReconcileRepo{ids: candidates}
	evaluator := &fakeSubscriptionEvaluator{}
	job := newReconcileJob(t, repo, evaluator, now)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !repo.lastNow.Equal(now) {
		t.Fatalf("expected candidate query at %s, got %s", now, repo.lastNow)
	}
	if repo.lastLimit != defaultReconcileLimit {
		t.Fatalf("expected default limit %d, got %d", defaultReconcileLimit, repo.lastLimit)
	}
	if len(evaluator.seen) != len(candidates) {
		t.Fatalf("expected %d evaluations, got %d", len(candidates), len(evaluator.seen))
	}
	for i, id := range candidates {
		if evaluator.seen[i] != id {
			t.Fatalf("expected merchant %s at position %d, got %s", id, i, evaluator.seen[i])
		}
	}
}

func TestSubscriptionReconcileJobContinuesPastFailures(t *testing.T) {
	failing := uuid.New()
	healthy := uuid.New()
	repo := &fakeReconcileRepo{ids: []uuid.UUID{failing, healthy}}
	evaluator := &fakeSubscriptionEvaluator{failFor: failing}
	job := newReconcileJob(t, repo, evaluator, time.Now())

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(evaluator.seen) != 2 {
		t.Fatalf("expected both merchants evaluated, got %d", len(evaluator.seen))
	}
}

func TestSubscriptionReconcileJobPropagatesListError(t *testing.T) {
	repo := &fakeReconcileRepo{err: errors.New("boom")}
	job := newReconcileJob(t, repo, &fakeSubscriptionEvaluator{}, time.Now())

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newReconcileJob(t *testing.T, repo *fakeReconcileRepo, evaluator *fakeSubscriptionEvaluator, now time.Time) Job {
	t.Helper()
	job, err := NewSubscriptionReconcileJob(SubscriptionReconcileJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Repository:    repo,
		Subscriptions: evaluator,
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewSubscriptionReconcileJob: %v", err)
	}
	return job
}

type fakeReconcileRepo struct {
	ids       []uuid.UUID
	err       error
	lastNow   time.Time
	lastLimit int
}

func (f *fakeReconcileRepo) ListLapsedActiveMerchants(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	f.lastNow = now
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

type fakeSubscriptionEvaluator struct {
	failFor uuid.UUID
	seen    []uuid.UUID
}

func (f *fakeSubscriptionEvaluator) Evaluate(ctx context.Context, merchantID uuid.UUID) (*models.MerchantSubscription, error) {
	f.seen = append(f.seen, merchantID)
	if merchantID == f.failFor {
		return nil, errors.New("evaluate failed")
	}
	return &models.MerchantSubscription{MerchantID: merchantID}, nil
}
