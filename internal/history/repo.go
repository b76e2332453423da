package history

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
)

// Repository reads the two event sources the projector merges. Listings
// return the merchant's newest rows first; a positive limit bounds the fetch
// so a page request never loads the full ledger. A limit of zero returns
// every row, which the flow-type filter path still needs because the flow is
// derived, not stored.
type Repository interface {
	ListTransactions(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.BalanceTransaction, error)
	ListEvents(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.SubscriptionEvent, error)
	CountTransactions(ctx context.Context, merchantID uuid.UUID) (int64, error)
	CountEvents(ctx context.Context, merchantID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a history repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListTransactions(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.BalanceTransaction, error) {
	var rows []models.BalanceTransaction
	query := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

func (r *repository) ListEvents(ctx context.Context, merchantID uuid.UUID, limit int) ([]models.SubscriptionEvent, error) {
	var rows []models.SubscriptionEvent
	query := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

func (r *repository) CountTransactions(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.BalanceTransaction{}).
		Where("merchant_id = ?", merchantID).
		Count(&total).Error
	return total, err
}

func (r *repository) CountEvents(ctx context.Context, merchantID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.SubscriptionEvent{}).
		Where("merchant_id = ?", merchantID).
		Count(&total).Error
	return total, err
}
