package webhooks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/practice-code/checkout-reconciler/pkg/db/models"
)

// Filter narrows webhook record queries. Nil fields are ignored.
type Filter struct {
	ReceivedBefore *time.Time
	ReceivedFrom   *time.Time
	ReceivedTo     *time.Time
	Processed      *bool
}

// Repository manages persistence for webhook records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.WebhookRecord) error
	FindByEventID(ctx context.Context, eventID string) (*models.WebhookRecord, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.WebhookRecord, error)
	ListUnprocessedByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.WebhookRecord, error)
	List(ctx context.Context, filter Filter) ([]models.WebhookRecord, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a webhook repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.WebhookRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByEventID(ctx context.Context, eventID string) (*models.WebhookRecord, error) {
	var record models.WebhookRecord
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.WebhookRecord, error) {
	var records []models.WebhookRecord
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("received_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListUnprocessedByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.WebhookRecord, error) {
	var records []models.WebhookRecord
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND processed = ?", orderID, false).
		Order("received_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.WebhookRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.WebhookRecord{})
	if filter.ReceivedBefore != nil {
		query = query.Where("received_at < ?", *filter.ReceivedBefore)
	}
	if filter.ReceivedFrom != nil {
		query = query.Where("received_at >= ?", *filter.ReceivedFrom)
	}
	if filter.ReceivedTo != nil {
		query = query.Where("received_at < ?", *filter.ReceivedTo)
	}
	if filter.Processed != nil {
		query = query.Where("processed = ?", *filter.Processed)
	}

	var records []models.WebhookRecord
	if err := query.Order("received_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookRecord{}).
		Where("id = ?", id).
		Update("processed", true).Error
}

func (r *repository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.WebhookRecord{}).Error
}
