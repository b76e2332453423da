package balance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
)

func setupBalanceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	merchants := `
CREATE TABLE IF NOT EXISTS merchants (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
  currency TEXT NOT NULL DEFAULT 'USD',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	balances := `
CREATE TABLE IF NOT EXISTS balances (
  id TEXT PRIMARY KEY,
  merchant_id TEXT NOT NULL UNIQUE,
  amount TEXT NOT NULL DEFAULT '0',
  currency TEXT NOT NULL DEFAULT 'USD',
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS balance_transactions (
  id TEXT PRIMARY KEY,
  balance_id TEXT NOT NULL,
  merchant_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount TEXT NOT NULL,
  balance_before TEXT NOT NULL,
  balance_after TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  description TEXT,
  order_id TEXT,
  payment_request_id TEXT,
  created_by_user_id TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(merchants).Error)
	require.NoError(t, db.Exec(balances).Error)
	require.NoError(t, db.Exec(transactions).Error)
	return db
}

func seedMerchant(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	merchant := models.Merchant{ID: uuid.New(), Name: "Trattoria Sole", Currency: enums.CurrencyUSD, IsActive: true}
	require.NoError(t, db.Create(&merchant).Error)
	return merchant.ID
}

func seedTransaction(t *testing.T, db *gorm.DB, txn models.BalanceTransaction) models.BalanceTransaction {
	t.Helper()
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	require.NoError(t, db.Create(&txn).Error)
	return txn
}

func TestRepositoryBalanceLifecycle(t *testing.T) {
	db := setupBalanceTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	merchantID := uuid.New()

	row, err := repo.Get(ctx, merchantID)
	require.NoError(t, err)
	assert.Nil(t, row)

	created := &models.Balance{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Amount:     decimal.NewFromInt(100),
		Currency:   enums.CurrencyUSD,
	}
	require.NoError(t, repo.Create(ctx, created))

	row, err = repo.Get(ctx, merchantID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, created.ID, row.ID)
	assert.True(t, row.Amount.Equal(decimal.NewFromInt(100)), "amount %s", row.Amount)

	row.Amount = decimal.RequireFromString("42.50")
	require.NoError(t, repo.Save(ctx, row))

	row, err = repo.Get(ctx, merchantID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.Amount.Equal(decimal.RequireFromString("42.50")), "amount %s", row.Amount)
}

func TestRepositoryListTransactions(t *testing.T) {
	db := setupBalanceTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	merchantID := uuid.New()
	balanceID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	deposit := seedTransaction(t, db, models.BalanceTransaction{
		BalanceID:     balanceID,
		MerchantID:    merchantID,
		Type:          enums.BalanceTransactionTypeDeposit,
		Amount:        decimal.NewFromInt(100),
		BalanceBefore: decimal.Zero,
		BalanceAfter:  decimal.NewFromInt(100),
		Currency:      enums.CurrencyUSD,
		CreatedAt:     base,
	})
	orderID := uuid.New()
	fee := seedTransaction(t, db, models.BalanceTransaction{
		BalanceID:     balanceID,
		MerchantID:    merchantID,
		Type:          enums.BalanceTransactionTypeOrderFee,
		Amount:        decimal.RequireFromString("-2.50"),
		BalanceBefore: decimal.NewFromInt(100),
		BalanceAfter:  decimal.RequireFromString("97.50"),
		Currency:      enums.CurrencyUSD,
		OrderID:       &orderID,
		CreatedAt:     base.Add(time.Minute),
	})
	seedTransaction(t, db, models.BalanceTransaction{
		BalanceID:     uuid.New(),
		MerchantID:    uuid.New(),
		Type:          enums.BalanceTransactionTypeDeposit,
		Amount:        decimal.NewFromInt(5),
		BalanceBefore: decimal.Zero,
		BalanceAfter:  decimal.NewFromInt(5),
		Currency:      enums.CurrencyUSD,
		CreatedAt:     base,
	})

	rows, total, err := repo.ListTransactions(ctx, merchantID, TransactionFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, rows, 2)
	assert.Equal(t, fee.ID, rows[0].ID, "newest first")
	assert.Equal(t, deposit.ID, rows[1].ID)

	feeType := enums.BalanceTransactionTypeOrderFee
	rows, total, err = repo.ListTransactions(ctx, merchantID, TransactionFilter{Type: &feeType, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, fee.ID, rows[0].ID)

	rows, total, err = repo.ListTransactions(ctx, merchantID, TransactionFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, rows, 1)
	assert.Equal(t, deposit.ID, rows[0].ID)
}

func TestRepositoryMerchantExists(t *testing.T) {
	db := setupBalanceTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	exists, err := repo.MerchantExists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)

	merchantID := seedMerchant(t, db)
	exists, err = repo.MerchantExists(ctx, merchantID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRepositoryHasOrderFee(t *testing.T) {
	db := setupBalanceTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	merchantID := uuid.New()
	orderID := uuid.New()

	found, err := repo.HasOrderFee(ctx, merchantID, orderID)
	require.NoError(t, err)
	assert.False(t, found)

	seedTransaction(t, db, models.BalanceTransaction{
		BalanceID:     uuid.New(),
		MerchantID:    merchantID,
		Type:          enums.BalanceTransactionTypeOrderFee,
		Amount:        decimal.RequireFromString("-1.00"),
		BalanceBefore: decimal.Zero,
		BalanceAfter:  decimal.RequireFromString("-1.00"),
		Currency:      enums.CurrencyUSD,
		OrderID:       &orderID,
	})

	found, err = repo.HasOrderFee(ctx, merchantID, orderID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.HasOrderFee(ctx, merchantID, uuid.New())
	require.NoError(t, err)
	assert.False(t, found)

	// Same order charged to a different merchant does not count.
	found, err = repo.HasOrderFee(ctx, uuid.New(), orderID)
	require.NoError(t, err)
	assert.False(t, found)
}
