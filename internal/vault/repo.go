package vault

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/practice-code/checkout-reconciler/pkg/db/models"
)

// Repository manages persistence for saved payment instruments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, instrument *models.PaymentInstrument) error
	FindBySourceID(ctx context.Context, sourceID string) (*models.PaymentInstrument, error)
	ListByCustomerID(ctx context.Context, customerID uuid.UUID) ([]models.PaymentInstrument, error)
	CountByCustomerID(ctx context.Context, customerID uuid.UUID) (int64, error)
	DeleteBySourceID(ctx context.Context, sourceID string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an instrument repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Upsert(ctx context.Context, instrument *models.PaymentInstrument) error {
	existing, err := r.FindBySourceID(ctx, instrument.SourceID)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.WithContext(ctx).Create(instrument).Error
	}

	instrument.ID = existing.ID
	instrument.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).
		Model(&models.PaymentInstrument{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"customer_id":  instrument.CustomerID,
			"scheme":       instrument.Scheme,
			"last4":        instrument.Last4,
			"expiry_month": instrument.ExpiryMonth,
			"expiry_year":  instrument.ExpiryYear,
			"is_default":   instrument.IsDefault,
		}).Error
}

func (r *repository) FindBySourceID(ctx context.Context, sourceID string) (*models.PaymentInstrument, error) {
	var instrument models.PaymentInstrument
	err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		First(&instrument).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &instrument, nil
}

func (r *repository) ListByCustomerID(ctx context.Context, customerID uuid.UUID) ([]models.PaymentInstrument, error) {
	var instruments []models.PaymentInstrument
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("is_default DESC, created_at ASC").
		Find(&instruments).Error; err != nil {
		return nil, err
	}
	return instruments, nil
}

func (r *repository) CountByCustomerID(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentInstrument{}).
		Where("customer_id = ?", customerID).
		Count(&count).Error
	return count, err
}

func (r *repository) DeleteBySourceID(ctx context.Context, sourceID string) error {
	return r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Delete(&models.PaymentInstrument{}).Error
}
