package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/practice-code/checkout-reconciler/pkg/enums"
)

// WebhookRecord persists a raw gateway notification before any order mutation.
// The (order_id, action_id, event_type) constraint makes redelivery a no-op.
type WebhookRecord struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     string                 `gorm:"column:event_id;not null;uniqueIndex:uq_webhook_records_event_id"`
	EventType   enums.GatewayEventType `gorm:"column:event_type;not null;uniqueIndex:uq_webhook_records_order_action_event"`
	OrderID     uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_webhook_records_order_action_event"`
	OrderNumber string                 `gorm:"column:order_number;not null;index"`
	PaymentID   string                 `gorm:"column:payment_id;not null"`
	ActionID    string                 `gorm:"column:action_id;not null;uniqueIndex:uq_webhook_records_order_action_event"`
	Amount      int64                  `gorm:"column:amount;not null;default:0"`
	Currency    string                 `gorm:"column:currency;type:text;not null;default:'USD'"`
	Payload     json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	Processed   bool                   `gorm:"column:processed;not null;default:false"`
	ReceivedAt  time.Time              `gorm:"column:received_at;autoCreateTime"`
}
