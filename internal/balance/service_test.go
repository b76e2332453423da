package balance

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbpkg "github.com/tavolo-app/tavolo-backend/pkg/db"
	"github.com/tavolo-app/tavolo-backend/pkg/db/models"
	"github.com/tavolo-app/tavolo-backend/pkg/enums"
	apperrors "github.com/tavolo-app/tavolo-backend/pkg/errors"
	"github.com/tavolo-app/tavolo-backend/pkg/outbox"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := setupBalanceTestDB(t)

	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(outboxEvents).Error)
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		DB:       dbpkg.NewFromConn(db),
		Repo:     NewRepository(db),
		Outbox:   outbox.NewService(outbox.NewRepository(db), nil),
		Currency: enums.CurrencyUSD,
	})
	require.NoError(t, err)
	return svc
}

func seedBalance(t *testing.T, db *gorm.DB, merchantID uuid.UUID, amount decimal.Decimal) models.Balance {
	t.Helper()
	row := models.Balance{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Amount:     amount,
		Currency:   enums.CurrencyUSD,
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestAdjustCreatesBalanceAndLedger(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	merchantID := seedMerchant(t, db)

	txn, err := svc.Adjust(ctx, AdjustParams{
		MerchantID:  merchantID,
		Amount:      decimal.NewFromInt(100),
		Type:        enums.BalanceTransactionTypeDeposit,
		Description: "initial top-up",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.True(t, txn.BalanceBefore.Equal(decimal.Zero))
	assert.True(t, txn.BalanceAfter.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, txn.Description)
	assert.Equal(t, "initial top-up", *txn.Description)

	row, err := svc.Get(ctx, merchantID)
	require.NoError(t, err)
	assert.True(t, row.Amount.Equal(decimal.NewFromInt(100)), "balance %s", row.Amount)

	var outboxCount int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventBalanceAdjusted).
		Count(&outboxCount).Error)
	assert.Equal(t, int64(1), outboxCount, "adjustment emits one outbox event")
}

func TestAdjustRejectsOverdraft(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	merchantID := uuid.New()
	seedBalance(t, db, merchantID, decimal.NewFromInt(10))

	_, err := svc.Adjust(ctx, AdjustParams{
		MerchantID: merchantID,
		Amount:     decimal.NewFromInt(-20),
		Type:       enums.BalanceTransactionTypeAdjustment,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInsufficient, apperrors.As(err).Code())

	// Rolled back: balance untouched, no ledger line.
	row, err := svc.Get(ctx, merchantID)
	require.NoError(t, err)
	assert.True(t, row.Amount.Equal(decimal.NewFromInt(10)))

	_, total, err := svc.ListTransactions(ctx, merchantID, TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAdjustAllowNegative(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	merchantID := uuid.New()
	seedBalance(t, db, merchantID, decimal.NewFromInt(1))

	orderID := uuid.New()
	txn, err := svc.Adjust(ctx, AdjustParams{
		MerchantID:    merchantID,
		Amount:        decimal.RequireFromString("-2.50"),
		Type:          enums.BalanceTransactionTypeOrderFee,
		OrderID:       &orderID,
		AllowNegative: true,
	})
	require.NoError(t, err)
	assert.True(t, txn.BalanceAfter.Equal(decimal.RequireFromString("-1.50")))

	found, err := svc.HasOrderFee(ctx, merchantID, orderID)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestAdjustValidation(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	tests := []struct {
		name   string
		params AdjustParams
	}{
		{
			name: "missing merchant",
			params: AdjustParams{
				Amount: decimal.NewFromInt(1),
				Type:   enums.BalanceTransactionTypeDeposit,
			},
		},
		{
			name: "zero amount",
			params: AdjustParams{
				MerchantID: uuid.New(),
				Type:       enums.BalanceTransactionTypeDeposit,
			},
		},
		{
			name: "invalid type",
			params: AdjustParams{
				MerchantID: uuid.New(),
				Amount:     decimal.NewFromInt(1),
				Type:       enums.BalanceTransactionType("not_real"),
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Adjust(ctx, tc.params)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
		})
	}
}

func TestGetReturnsZeroViewForUnknownMerchant(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestService(t, db)

	row, err := svc.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.Amount.IsZero())
	assert.Equal(t, enums.CurrencyUSD, row.Currency)
}

func TestAdjustUnknownMerchantNotFound(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Adjust(context.Background(), AdjustParams{
		MerchantID: uuid.New(),
		Amount:     decimal.NewFromInt(50),
		Type:       enums.BalanceTransactionTypeAdjustment,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.As(err).Code())

	var balances int64
	require.NoError(t, db.Model(&models.Balance{}).Count(&balances).Error)
	assert.Zero(t, balances, "no balance row materialized for an unknown merchant")
}

func TestLedgerOrderSurvivesTimestampTies(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	merchantID := seedMerchant(t, db)

	var inserted []uuid.UUID
	for i := 0; i < 10; i++ {
		txn, err := svc.Adjust(ctx, AdjustParams{
			MerchantID:    merchantID,
			Amount:        decimal.NewFromInt(1),
			Type:          enums.BalanceTransactionTypeAdjustment,
			AllowNegative: true,
		})
		require.NoError(t, err)
		inserted = append(inserted, txn.ID)
	}

	// Ids are time-ordered, so insertion order is recoverable even when
	// created_at collides within the column's granularity.
	for i := 1; i < len(inserted); i++ {
		assert.Less(t, inserted[i-1].String(), inserted[i].String(), "ledger ids must be monotonic")
	}

	rows, _, err := svc.ListTransactions(ctx, merchantID, TransactionFilter{Limit: 20})
	require.NoError(t, err)
	require.Len(t, rows, len(inserted))
	for i, row := range rows {
		assert.Equal(t, inserted[len(inserted)-1-i], row.ID, "newest first at position %d", i)
	}
}

func TestAdjustSnapshotChaining(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	merchantID := seedMerchant(t, db)

	rng := rand.New(rand.NewSource(7))
	expected := decimal.Zero
	prevAfter := decimal.Zero

	for i := 0; i < 25; i++ {
		amount := decimal.NewFromInt(int64(rng.Intn(200) - 80))
		if amount.IsZero() {
			amount = decimal.NewFromInt(1)
		}
		txn, err := svc.Adjust(ctx, AdjustParams{
			MerchantID:    merchantID,
			Amount:        amount,
			Type:          enums.BalanceTransactionTypeAdjustment,
			AllowNegative: true,
		})
		require.NoError(t, err)
		assert.True(t, txn.BalanceBefore.Equal(prevAfter), "step %d: before %s, prev after %s", i, txn.BalanceBefore, prevAfter)
		assert.True(t, txn.BalanceAfter.Equal(txn.BalanceBefore.Add(amount)))
		prevAfter = txn.BalanceAfter
		expected = expected.Add(amount)
	}

	row, err := svc.Get(ctx, merchantID)
	require.NoError(t, err)
	assert.True(t, row.Amount.Equal(expected), "balance %s, replayed %s", row.Amount, expected)

	_, total, err := svc.ListTransactions(ctx, merchantID, TransactionFilter{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
}
