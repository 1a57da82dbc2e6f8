package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	"github.com/practice-code/checkout-reconciler/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("number = ?", number).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus writes the new state/status and appends a history entry in one go.
func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, state enums.OrderState, status string, comment *string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"state":  state,
			"status": status,
		}).Error
	if err != nil {
		return err
	}
	history := models.OrderStatusHistory{
		OrderID: orderID,
		State:   state,
		Status:  status,
		Comment: comment,
	}
	return r.db.WithContext(ctx).Create(&history).Error
}

func (r *repository) AddRefundedAmount(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("total_refunded", gorm.Expr("total_refunded + ?", amount)).Error
}

func (r *repository) SetRefundedAmount(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("total_refunded", amount).Error
}

func (r *repository) LatestHistory(ctx context.Context, orderID uuid.UUID) (*models.OrderStatusHistory, error) {
	var entry models.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) UpdateHistoryComment(ctx context.Context, historyID uuid.UUID, comment string) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderStatusHistory{}).
		Where("id = ?", historyID).
		Update("comment", comment).Error
}
