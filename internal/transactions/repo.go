package transactions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	"github.com/practice-code/checkout-reconciler/pkg/enums"
)

// Repository manages persistence for payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error)
	FindLatestByType(ctx context.Context, orderID uuid.UUID, txnType enums.TransactionType) (*models.Transaction, error)
	FindLatestClosedByType(ctx context.Context, orderID uuid.UUID, txnType enums.TransactionType) (*models.Transaction, error)
	HasForAction(ctx context.Context, orderID uuid.UUID, actionID string, txnType enums.TransactionType) (bool, error)
	MarkClosed(ctx context.Context, id uuid.UUID) error
	SetParent(ctx context.Context, id uuid.UUID, parentID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) FindLatestByType(ctx context.Context, orderID uuid.UUID, txnType enums.TransactionType) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ?", orderID, txnType).
		Order("created_at DESC").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindLatestClosedByType(ctx context.Context, orderID uuid.UUID, txnType enums.TransactionType) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ? AND closed = ?", orderID, txnType, true).
		Order("created_at DESC").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) HasForAction(ctx context.Context, orderID uuid.UUID, actionID string, txnType enums.TransactionType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("order_id = ? AND action_id = ? AND type = ?", orderID, actionID, txnType).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) MarkClosed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("closed", true).Error
}

func (r *repository) SetParent(ctx context.Context, id uuid.UUID, parentID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("parent_id", parentID).Error
}
