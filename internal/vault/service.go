package vault

import (
	"context"

	"github.com/google/uuid"

	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	pkgerrors "github.com/practice-code/checkout-reconciler/pkg/errors"
	"github.com/practice-code/checkout-reconciler/pkg/logger"
)

// SaveInstrumentInput carries the gateway source details for a stored card.
type SaveInstrumentInput struct {
	CustomerID  uuid.UUID `validate:"required"`
	SourceID    string    `validate:"required"`
	Scheme      string    `validate:"required"`
	Last4       string    `validate:"required,len=4"`
	ExpiryMonth int       `validate:"required,min=1,max=12"`
	ExpiryYear  int       `validate:"required,min=2000"`
	IsDefault   bool
}

// ServiceParams wires the vault dependencies.
type ServiceParams struct {
	Repo Repository
	Logg *logger.Logger
}

// Service exposes saved payment instrument lookups and maintenance.
type Service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "instrument repo required")
	}
	return &Service{repo: params.Repo, logg: params.Logg}, nil
}

// SaveInstrument stores or refreshes a gateway source for the customer.
// The gateway source id is the identity, so redelivered vault webhooks
// overwrite the card metadata instead of duplicating rows.
func (s *Service) SaveInstrument(ctx context.Context, input SaveInstrumentInput) (*models.PaymentInstrument, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source id required")
	}

	instrument := &models.PaymentInstrument{
		CustomerID:  input.CustomerID,
		SourceID:    input.SourceID,
		Scheme:      input.Scheme,
		Last4:       input.Last4,
		ExpiryMonth: input.ExpiryMonth,
		ExpiryYear:  input.ExpiryYear,
		IsDefault:   input.IsDefault,
	}
	if err := s.repo.Upsert(ctx, instrument); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "save payment instrument")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "source_id", instrument.SourceID), "payment instrument saved")
	}
	return instrument, nil
}

// ListInstruments returns the customer's saved instruments, default first.
func (s *Service) ListInstruments(ctx context.Context, customerID uuid.UUID) ([]models.PaymentInstrument, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	instruments, err := s.repo.ListByCustomerID(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "list payment instruments")
	}
	return instruments, nil
}

// HasSavedInstrument reports whether the customer holds at least one stored
// gateway source.
func (s *Service) HasSavedInstrument(ctx context.Context, customerID uuid.UUID) (bool, error) {
	if customerID == uuid.Nil {
		return false, nil
	}
	count, err := s.repo.CountByCustomerID(ctx, customerID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "count payment instruments")
	}
	return count > 0, nil
}

// RemoveInstrument deletes the stored source. Removing an unknown source is
// a no-op so gateway deletion webhooks can be retried safely.
func (s *Service) RemoveInstrument(ctx context.Context, sourceID string) error {
	if sourceID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "source id required")
	}
	if err := s.repo.DeleteBySourceID(ctx, sourceID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "remove payment instrument")
	}
	return nil
}
