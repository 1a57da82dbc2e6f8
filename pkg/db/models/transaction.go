package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/practice-code/checkout-reconciler/pkg/enums"
)

// Transaction is a payment transaction derived from a monitored gateway event.
// The (order_id, action_id, type) constraint keeps replays idempotent.
type Transaction struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID             `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_transactions_order_action_type"`
	ActionID  string                `gorm:"column:action_id;not null;uniqueIndex:uq_transactions_order_action_type"`
	Type      enums.TransactionType `gorm:"column:type;type:transaction_type_enum;not null;uniqueIndex:uq_transactions_order_action_type"`
	ParentID  *uuid.UUID            `gorm:"column:parent_id;type:uuid"`
	PaymentID string                `gorm:"column:payment_id;not null"`
	Amount    decimal.Decimal       `gorm:"column:amount;type:numeric(12,4);not null"`
	Currency  string                `gorm:"column:currency;type:text;not null;default:'USD'"`
	Closed    bool                  `gorm:"column:closed;not null;default:false"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
