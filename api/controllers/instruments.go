package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/practice-code/checkout-reconciler/api/responses"
	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	pkgerrors "github.com/practice-code/checkout-reconciler/pkg/errors"
	"github.com/practice-code/checkout-reconciler/pkg/logger"
)

type InstrumentService interface {
	ListInstruments(ctx context.Context, customerID uuid.UUID) ([]models.PaymentInstrument, error)
	RemoveInstrument(ctx context.Context, sourceID string) error
}

type instrumentResponse struct {
	ID          uuid.UUID `json:"id"`
	SourceID    string    `json:"source_id"`
	Scheme      string    `json:"scheme"`
	Last4       string    `json:"last4"`
	ExpiryMonth int       `json:"expiry_month"`
	ExpiryYear  int       `json:"expiry_year"`
	IsDefault   bool      `json:"is_default"`
}

// CustomerInstruments lists a customer's saved payment instruments.
func CustomerInstruments(svc InstrumentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid customer id"))
			return
		}

		instruments, err := svc.ListInstruments(ctx, customerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		out := make([]instrumentResponse, 0, len(instruments))
		for _, instrument := range instruments {
			out = append(out, instrumentResponse{
				ID:          instrument.ID,
				SourceID:    instrument.SourceID,
				Scheme:      instrument.Scheme,
				Last4:       instrument.Last4,
				ExpiryMonth: instrument.ExpiryMonth,
				ExpiryYear:  instrument.ExpiryYear,
				IsDefault:   instrument.IsDefault,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// RemoveCustomerInstrument deletes a saved payment instrument by source id.
func RemoveCustomerInstrument(svc InstrumentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if _, err := uuid.Parse(chi.URLParam(r, "customerID")); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid customer id"))
			return
		}

		if err := svc.RemoveInstrument(ctx, chi.URLParam(r, "sourceID")); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}
