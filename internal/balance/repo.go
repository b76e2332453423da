package balance

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
)

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	Type   *enums.BalanceTransactionType
	Limit  int
	Offset int
}

// Repository manages persistence for balances and their transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, merchantID uuid.UUID) (*models.Balance, error)
	GetForUpdate(ctx context.Context, merchantID uuid.UUID) (*models.Balance, error)
	Create(ctx context.Context, balance *models.Balance) error
	MerchantExists(ctx context.Context, merchantID uuid.UUID) (bool, error)
	Save(ctx context.Context, balance *models.Balance) error
	InsertTransaction(ctx context.Context, txn *models.BalanceTransaction) error
	ListTransactions(ctx context.Context, merchantID uuid.UUID, filter TransactionFilter) ([]models.BalanceTransaction, int64, error)
	HasOrderFee(ctx context.Context, merchantID, orderID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a balance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, merchantID uuid.UUID) (*models.Balance, error) {
	var row models.Balance
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

// GetForUpdate loads the balance row under a FOR UPDATE lock. Callers must
// be inside a transaction.
func (r *repository) GetForUpdate(ctx context.Context, merchantID uuid.UUID) (*models.Balance, error) {
	var row models.Balance
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

func (r *repository) Create(ctx context.Context, balance *models.Balance) error {
	return r.db.WithContext(ctx).Create(balance).Error
}

func (r *repository) MerchantExists(ctx context.Context, merchantID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Merchant{}).
		Where("id = ?", merchantID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) Save(ctx context.Context, balance *models.Balance) error {
	return r.db.WithContext(ctx).Save(balance).Error
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.BalanceTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, merchantID uuid.UUID, filter TransactionFilter) ([]models.BalanceTransaction, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.BalanceTransaction{}).
		Where("merchant_id = ?", merchantID)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.BalanceTransaction
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

func (r *repository) HasOrderFee(ctx context.Context, merchantID, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BalanceTransaction{}).
		Where("merchant_id = ? AND order_id = ? AND type = ?", merchantID, orderID, enums.BalanceTransactionTypeOrderFee).
		Count(&count).Error
	return count > 0, err
}
