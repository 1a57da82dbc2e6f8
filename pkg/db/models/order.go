package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/practice-code/checkout-reconciler/pkg/enums"
)

// Order mirrors the commerce platform order that gateway events reconcile against.
type Order struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number        string               `gorm:"column:number;not null;uniqueIndex:uq_orders_number"`
	CustomerID    *uuid.UUID           `gorm:"column:customer_id;type:uuid"`
	State         enums.OrderState     `gorm:"column:state;type:order_state_enum;not null;default:'new'"`
	Status        string               `gorm:"column:status;not null;default:'pending'"`
	PaymentMethod string               `gorm:"column:payment_method;not null"`
	Currency      string               `gorm:"column:currency;type:text;not null;default:'USD'"`
	GrandTotal    decimal.Decimal      `gorm:"column:grand_total;type:numeric(12,4);not null"`
	TotalRefunded decimal.Decimal      `gorm:"column:total_refunded;type:numeric(12,4);not null;default:0"`
	History       []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Transactions  []Transaction        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
