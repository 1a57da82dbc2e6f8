package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/practice-code/checkout-reconciler/pkg/config"
	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	"github.com/practice-code/checkout-reconciler/pkg/enums"
	pkgerrors "github.com/practice-code/checkout-reconciler/pkg/errors"
	"github.com/practice-code/checkout-reconciler/pkg/logger"
	"github.com/practice-code/checkout-reconciler/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type transactionLister interface {
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error)
}

// Service applies payment transactions to order state.
type Service interface {
	ApplyTransaction(ctx context.Context, tx *gorm.DB, txn *models.Transaction) (*models.Order, error)
	RecordCreditMemo(ctx context.Context, input CreditMemoInput) error
	Sync(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
}

// CreditMemoInput carries the data a recorded credit memo contributes.
type CreditMemoInput struct {
	OrderID uuid.UUID
	Amount  decimal.Decimal
	Comment *string
}

// OrderStatusChangedEvent is emitted whenever reconciliation moves an order.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID        `json:"order_id"`
	Number  string           `json:"number"`
	State   enums.OrderState `json:"state"`
	Status  string           `json:"status"`
}

// ServiceParams wires the order reconciliation dependencies.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Txns     transactionLister
	Statuses config.OrderStatusConfig
	Logg     *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	txns     transactionLister
	statuses config.OrderStatusConfig
	logg     *logger.Logger
}

// NewService builds an order reconciliation service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Txns == nil {
		return nil, fmt.Errorf("transaction lister required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		txns:     params.Txns,
		statuses: params.Statuses,
		logg:     params.Logg,
	}, nil
}

// ApplyTransaction moves the order to the state the transaction implies.
// Orders in a terminal state only accumulate refund totals; their status is
// never overridden.
func (s *service) ApplyTransaction(ctx context.Context, tx *gorm.DB, txn *models.Transaction) (*models.Order, error) {
	if txn == nil {
		return nil, fmt.Errorf("transaction required")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, txn.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	switch txn.Type {
	case enums.TransactionTypeAuthorization:
		return s.applyAuthorization(ctx, tx, repo, order)
	case enums.TransactionTypeCapture:
		return s.applyStatus(ctx, tx, repo, order, enums.OrderStateProcessing, s.statuses.Captured, nil)
	case enums.TransactionTypeVoid:
		return s.applyStatus(ctx, tx, repo, order, enums.OrderStateCanceled, s.statuses.Voided, nil)
	case enums.TransactionTypeRefund:
		return s.applyRefund(ctx, tx, repo, order, txn.Amount)
	default:
		return nil, fmt.Errorf("invalid transaction type %q", txn.Type)
	}
}

// applyAuthorization only moves orders still sitting in the initial pending
// status; a later capture or void must not be rewound by a delayed auth event.
func (s *service) applyAuthorization(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) (*models.Order, error) {
	if order.Status != s.statuses.Pending {
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, order.Number)
			s.logg.Info(logCtx, "order already progressed, skipping authorization status")
		}
		return order, nil
	}
	return s.applyStatus(ctx, tx, repo, order, enums.OrderStateProcessing, s.statuses.Authorized, nil)
}

func (s *service) applyRefund(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, amount decimal.Decimal) (*models.Order, error) {
	if err := repo.AddRefundedAmount(ctx, order.ID, amount); err != nil {
		return nil, err
	}
	order.TotalRefunded = order.TotalRefunded.Add(amount)

	if order.TotalRefunded.GreaterThanOrEqual(order.GrandTotal) {
		return s.applyStatus(ctx, tx, repo, order, enums.OrderStateClosed, s.statuses.Refunded, nil)
	}

	comment := fmt.Sprintf("partial refund of %s %s recorded", amount.String(), order.Currency)
	return s.applyStatus(ctx, tx, repo, order, order.State, order.Status, &comment)
}

func (s *service) applyStatus(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, state enums.OrderState, status string, comment *string) (*models.Order, error) {
	if order.State.IsTerminal() && state != order.State {
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, order.Number)
			s.logg.Info(logCtx, "order in terminal state, skipping status override")
		}
		return order, nil
	}

	if err := repo.UpdateStatus(ctx, order.ID, state, status, comment); err != nil {
		return nil, err
	}
	order.State = state
	order.Status = status

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: OrderStatusChangedEvent{
			OrderID: order.ID,
			Number:  order.Number,
			State:   state,
			Status:  status,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return order, nil
}

// RecordCreditMemo applies an operator-issued refund. Orders already closed or
// complete keep their status; otherwise the configured refunded status is set
// and mirrored into the latest history comment.
func (s *service) RecordCreditMemo(ctx context.Context, input CreditMemoInput) error {
	if input.OrderID == uuid.Nil {
		return fmt.Errorf("order id is required")
	}
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit memo amount must be positive")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		if err := repo.AddRefundedAmount(ctx, order.ID, input.Amount); err != nil {
			return err
		}

		if order.State.IsTerminal() {
			if s.logg != nil {
				logCtx := s.logg.WithOrderID(ctx, order.Number)
				s.logg.Info(logCtx, "credit memo on closed order, keeping status")
			}
			return nil
		}

		status := s.statuses.Refunded
		comment := status
		if input.Comment != nil && *input.Comment != "" {
			comment = *input.Comment
		}
		if _, err := s.applyStatus(ctx, tx, repo, order, order.State, status, &comment); err != nil {
			return err
		}

		latest, err := repo.LatestHistory(ctx, order.ID)
		if err != nil {
			return err
		}
		if latest != nil {
			return repo.UpdateHistoryComment(ctx, latest.ID, comment)
		}
		return nil
	})
}

// Sync rederives order state from the stored transaction set. Used when an
// operator wants to force reconciliation after manual fixes.
func (s *service) Sync(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}

	txns, err := s.txns.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err = repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		var hasAuth, hasCapture, hasVoid bool
		refundTotal := decimal.Zero
		for _, txn := range txns {
			switch txn.Type {
			case enums.TransactionTypeAuthorization:
				hasAuth = true
			case enums.TransactionTypeCapture:
				hasCapture = true
			case enums.TransactionTypeVoid:
				hasVoid = true
			case enums.TransactionTypeRefund:
				refundTotal = refundTotal.Add(txn.Amount)
			}
		}

		if !order.TotalRefunded.Equal(refundTotal) {
			if err := repo.SetRefundedAmount(ctx, order.ID, refundTotal); err != nil {
				return err
			}
			order.TotalRefunded = refundTotal
		}

		state, status := order.State, order.Status
		switch {
		case hasVoid:
			state, status = enums.OrderStateCanceled, s.statuses.Voided
		case refundTotal.GreaterThanOrEqual(order.GrandTotal) && !refundTotal.IsZero():
			state, status = enums.OrderStateClosed, s.statuses.Refunded
		case hasCapture:
			state, status = enums.OrderStateProcessing, s.statuses.Captured
		case hasAuth && order.Status == s.statuses.Pending:
			state, status = enums.OrderStateProcessing, s.statuses.Authorized
		}

		if state == order.State && status == order.Status {
			return nil
		}
		order, err = s.applyStatus(ctx, tx, repo, order, state, status, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	if number == "" {
		return nil, fmt.Errorf("order number is required")
	}
	return s.repo.FindByNumber(ctx, number)
}
