package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentInstrument is a stored card reference returned by the gateway vault.
type PaymentInstrument struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID  uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	SourceID    string    `gorm:"column:source_id;not null;uniqueIndex:uq_payment_instruments_source_id"`
	Scheme      string    `gorm:"column:scheme;not null"`
	Last4       string    `gorm:"column:last4;not null"`
	ExpiryMonth int       `gorm:"column:expiry_month;not null"`
	ExpiryYear  int       `gorm:"column:expiry_year;not null"`
	IsDefault   bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
