package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	"github.com/practice-code/checkout-reconciler/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  number TEXT NOT NULL,
  customer_id TEXT,
  state TEXT NOT NULL DEFAULT 'new',
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  grand_total NUMERIC NOT NULL,
  total_refunded NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT uq_orders_number UNIQUE (number)
);`
	history := `
CREATE TABLE IF NOT EXISTS order_status_history (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  order_id TEXT NOT NULL,
  state TEXT NOT NULL,
  status TEXT NOT NULL,
  comment TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(history).Error)
	return db
}

func seedOrder(t *testing.T, repo Repository, number string) *models.Order {
	t.Helper()
	order, err := repo.Create(context.Background(), &models.Order{
		ID:            uuid.New(),
		Number:        number,
		State:         enums.OrderStateNew,
		Status:        "pending",
		PaymentMethod: "checkout_card",
		Currency:      "USD",
		GrandTotal:    decimal.New(6500, -2),
	})
	require.NoError(t, err)
	return order
}

func TestRepositoryCreateAndFind(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, repo, "100000042")

	byID, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "100000042", byID.Number)
	assert.Equal(t, enums.OrderStateNew, byID.State)

	byNumber, err := repo.FindByNumber(ctx, "100000042")
	require.NoError(t, err)
	require.NotNil(t, byNumber)
	assert.Equal(t, order.ID, byNumber.ID)

	missing, err := repo.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryCreateRejectsDuplicateNumber(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	seedOrder(t, repo, "100000042")

	_, err := repo.Create(context.Background(), &models.Order{
		ID:            uuid.New(),
		Number:        "100000042",
		State:         enums.OrderStateNew,
		Status:        "pending",
		PaymentMethod: "checkout_card",
		Currency:      "USD",
		GrandTotal:    decimal.New(100, -2),
	})
	require.Error(t, err)
}

func TestRepositoryUpdateStatusAppendsHistory(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, repo, "100000042")

	comment := "authorized amount matches order total"
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStateProcessing, "authorized", &comment))
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStateProcessing, "processing", nil))

	updated, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, enums.OrderStateProcessing, updated.State)
	assert.Equal(t, "processing", updated.Status)

	latest, err := repo.LatestHistory(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "processing", latest.Status)
	assert.Nil(t, latest.Comment)
}

func TestRepositoryUpdateHistoryComment(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, repo, "100000042")
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStateClosed, "refunded", nil))

	latest, err := repo.LatestHistory(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)

	require.NoError(t, repo.UpdateHistoryComment(ctx, latest.ID, "refund of 65 USD issued"))

	reloaded, err := repo.LatestHistory(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	require.NotNil(t, reloaded.Comment)
	assert.Equal(t, "refund of 65 USD issued", *reloaded.Comment)
}

func TestRepositoryRefundedAmounts(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, repo, "100000042")

	require.NoError(t, repo.AddRefundedAmount(ctx, order.ID, decimal.New(2000, -2)))
	require.NoError(t, repo.AddRefundedAmount(ctx, order.ID, decimal.New(500, -2)))

	updated, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.TotalRefunded.Equal(decimal.New(2500, -2)))

	require.NoError(t, repo.SetRefundedAmount(ctx, order.ID, decimal.New(6500, -2)))
	updated, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.TotalRefunded.Equal(decimal.New(6500, -2)))
}
