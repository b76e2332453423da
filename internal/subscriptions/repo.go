package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
)

// Repository manages persistence for merchant subscriptions and their
// lifecycle events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetMerchant(ctx context.Context, merchantID uuid.UUID) (*models.Merchant, error)
	GetByMerchant(ctx context.Context, merchantID uuid.UUID) (*models.MerchantSubscription, error)
	GetByMerchantForUpdate(ctx context.Context, merchantID uuid.UUID) (*models.MerchantSubscription, error)
	Create(ctx context.Context, sub *models.MerchantSubscription) error
	Save(ctx context.Context, sub *models.MerchantSubscription) error
	InsertEvent(ctx context.Context, event *models.SubscriptionEvent) error
	ListLapsedActiveMerchants(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetMerchant(ctx context.Context, merchantID uuid.UUID) (*models.Merchant, error) {
	var row models.Merchant
	err := r.db.WithContext(ctx).
		Where("id = ?", merchantID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetByMerchant(ctx context.Context, merchantID uuid.UUID) (*models.MerchantSubscription, error) {
	var row models.MerchantSubscription
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByMerchantForUpdate loads the subscription row under a FOR UPDATE lock.
// Callers must be inside a transaction.
func (r *repository) GetByMerchantForUpdate(ctx context.Context, merchantID uuid.UUID) (*models.MerchantSubscription, error) {
	var row models.MerchantSubscription
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("merchant_id = ?", merchantID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) Create(ctx context.Context, sub *models.MerchantSubscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) Save(ctx context.Context, sub *models.MerchantSubscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) InsertEvent(ctx context.Context, event *models.SubscriptionEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListLapsedActiveMerchants returns merchants still marked active whose trial
// or paid period already ended. The reconcile job re-evaluates each one;
// deposit subscriptions are reconciled eagerly on balance changes and never
// lapse by time alone.
func (r *repository) ListLapsedActiveMerchants(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.MerchantSubscription{}).
		Where("status = ?", enums.SubscriptionStatusActive).
		Where(
			r.db.Where("type = ? AND trial_ends_at IS NOT NULL AND trial_ends_at <= ?", enums.SubscriptionTypeTrial, now).
				Or("type = ? AND current_period_end IS NOT NULL AND current_period_end <= ?", enums.SubscriptionTypeMonthly, now),
		).
		Order("created_at ASC").
		Limit(limit).
		Pluck("merchant_id", &ids).Error
	return ids, err
}
