package vault

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/practice-code/checkout-reconciler/pkg/db/models"
)

func setupVaultTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	instruments := `
CREATE TABLE IF NOT EXISTS payment_instruments (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  source_id TEXT NOT NULL,
  scheme TEXT NOT NULL,
  last4 TEXT NOT NULL,
  expiry_month INTEGER NOT NULL,
  expiry_year INTEGER NOT NULL,
  is_default INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT uq_payment_instruments_source_id UNIQUE (source_id)
);`
	require.NoError(t, db.Exec(instruments).Error)
	return db
}

func newInstrument(customerID uuid.UUID, sourceID string, isDefault bool) *models.PaymentInstrument {
	return &models.PaymentInstrument{
		ID:          uuid.New(),
		CustomerID:  customerID,
		SourceID:    sourceID,
		Scheme:      "visa",
		Last4:       "4242",
		ExpiryMonth: 9,
		ExpiryYear:  2030,
		IsDefault:   isDefault,
	}
}

func TestRepositoryUpsert_insertThenUpdate(t *testing.T) {
	db := setupVaultTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	require.NoError(t, repo.Upsert(ctx, newInstrument(customerID, "src_1", false)))

	refreshed := newInstrument(customerID, "src_1", true)
	refreshed.Scheme = "mastercard"
	refreshed.Last4 = "5454"
	require.NoError(t, repo.Upsert(ctx, refreshed))

	count, err := repo.CountByCustomerID(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := repo.FindBySourceID(ctx, "src_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "mastercard", stored.Scheme)
	assert.Equal(t, "5454", stored.Last4)
	assert.True(t, stored.IsDefault)
}

func TestRepositoryListByCustomerID_defaultFirst(t *testing.T) {
	db := setupVaultTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	require.NoError(t, repo.Upsert(ctx, newInstrument(customerID, "src_a", false)))
	require.NoError(t, repo.Upsert(ctx, newInstrument(customerID, "src_b", true)))
	require.NoError(t, repo.Upsert(ctx, newInstrument(uuid.New(), "src_other", false)))

	list, err := repo.ListByCustomerID(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "src_b", list[0].SourceID)
	assert.Equal(t, "src_a", list[1].SourceID)
}

func TestRepositoryFindBySourceID_missingReturnsNil(t *testing.T) {
	db := setupVaultTestDB(t)
	repo := NewRepository(db)

	stored, err := repo.FindBySourceID(context.Background(), "src_missing")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestRepositoryDeleteBySourceID(t *testing.T) {
	db := setupVaultTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	require.NoError(t, repo.Upsert(ctx, newInstrument(customerID, "src_del", false)))
	require.NoError(t, repo.DeleteBySourceID(ctx, "src_del"))

	count, err := repo.CountByCustomerID(ctx, customerID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// deleting again is a no-op
	require.NoError(t, repo.DeleteBySourceID(ctx, "src_del"))
}
