package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	"github.com/practice-code/checkout-reconciler/pkg/enums"
)

// Repository defines persistence operations for orders and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, state enums.OrderState, status string, comment *string) error
	AddRefundedAmount(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error
	SetRefundedAmount(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error
	LatestHistory(ctx context.Context, orderID uuid.UUID) (*models.OrderStatusHistory, error)
	UpdateHistoryComment(ctx context.Context, historyID uuid.UUID, comment string) error
}
