package paymentrequests

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

// ListFilter narrows payment request listings.
type ListFilter struct {
	Status *enums.PaymentRequestStatus
	Limit  int
	Offset int
}

// Repository manages persistence for payment requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	GetActive(ctx context.Context, merchantID uuid.UUID) (*models.PaymentRequest, error)
	Create(ctx context.Context, request *models.PaymentRequest) error
	Save(ctx context.Context, request *models.PaymentRequest) error
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, filter ListFilter) ([]models.PaymentRequest, int64, error)
	List(ctx context.Context, filter ListFilter) ([]models.PaymentRequest, int64, error)
	ListLapsedActive(ctx context.Context, now time.Time, limit int) ([]models.PaymentRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment request repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	var row models.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetForUpdate loads the request under a FOR UPDATE lock. Callers must be
// inside a transaction.
func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	var row models.PaymentRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetActive(ctx context.Context, merchantID uuid.UUID) (*models.PaymentRequest, error) {
	var row models.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND status IN ?", merchantID, []enums.PaymentRequestStatus{
			enums.PaymentRequestStatusPending,
			enums.PaymentRequestStatusConfirmed,
		}).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) Create(ctx context.Context, request *models.PaymentRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) Save(ctx context.Context, request *models.PaymentRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *repository) ListByMerchant(ctx context.Context, merchantID uuid.UUID, filter ListFilter) ([]models.PaymentRequest, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PaymentRequest{}).
		Where("merchant_id = ?", merchantID)
	return r.list(query, filter)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.PaymentRequest, int64, error) {
	return r.list(r.db.WithContext(ctx).Model(&models.PaymentRequest{}), filter)
}

func (r *repository) list(query *gorm.DB, filter ListFilter) ([]models.PaymentRequest, int64, error) {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PaymentRequest
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListLapsedActive returns active requests whose expiry window has passed,
// for the sweep to persist as EXPIRED.
func (r *repository) ListLapsedActive(ctx context.Context, now time.Time, limit int) ([]models.PaymentRequest, error) {
	var rows []models.PaymentRequest
	err := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at <= ?", []enums.PaymentRequestStatus{
			enums.PaymentRequestStatusPending,
			enums.PaymentRequestStatusConfirmed,
		}, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
