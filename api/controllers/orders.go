package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/practice-code/checkout-reconciler/api/responses"
	"github.com/practice-code/checkout-reconciler/api/validators"
	"github.com/practice-code/checkout-reconciler/internal/orders"
	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	pkgerrors "github.com/practice-code/checkout-reconciler/pkg/errors"
	"github.com/practice-code/checkout-reconciler/pkg/logger"
)

type OrderSyncService interface {
	Sync(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type webhookReplayer interface {
	IngestAll(ctx context.Context, orderID uuid.UUID) error
}

type CreditMemoService interface {
	RecordCreditMemo(ctx context.Context, input orders.CreditMemoInput) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type orderResponse struct {
	ID            uuid.UUID       `json:"id"`
	Number        string          `json:"number"`
	State         string          `json:"state"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	Currency      string          `json:"currency"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	TotalRefunded decimal.Decimal `json:"total_refunded"`
}

func toOrderResponse(order *models.Order) orderResponse {
	return orderResponse{
		ID:            order.ID,
		Number:        order.Number,
		State:         string(order.State),
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		Currency:      order.Currency,
		GrandTotal:    order.GrandTotal,
		TotalRefunded: order.TotalRefunded,
	}
}

// OrderSync replays every stored webhook for the order and rederives its
// state from the resulting transaction set.
func OrderSync(replayer webhookReplayer, svc OrderSyncService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		if err := replayer.IngestAll(ctx, orderID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.Sync(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, toOrderResponse(order))
	}
}

type creditMemoRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Comment *string         `json:"comment"`
}

// OrderCreditMemo reconciles order status with a refund issued outside the
// webhook flow.
func OrderCreditMemo(svc CreditMemoService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		var body creditMemoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.RecordCreditMemo(ctx, orders.CreditMemoInput{
			OrderID: orderID,
			Amount:  body.Amount,
			Comment: body.Comment,
		}); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.FindByID(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if order == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toOrderResponse(order))
	}
}
