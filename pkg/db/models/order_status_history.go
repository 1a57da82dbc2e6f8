package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/practice-code/checkout-reconciler/pkg/enums"
)

// OrderStatusHistory is an append-only trail of order state and status changes.
type OrderStatusHistory struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	State     enums.OrderState `gorm:"column:state;type:order_state_enum;not null"`
	Status    string           `gorm:"column:status;not null"`
	Comment   *string          `gorm:"column:comment"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
