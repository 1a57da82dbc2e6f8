package transactions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/practice-code/checkout-reconciler/pkg/db"
	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	"github.com/practice-code/checkout-reconciler/pkg/enums"
	"github.com/practice-code/checkout-reconciler/pkg/logger"
)

const uqOrderActionType = "uq_transactions_order_action_type"

// Service records payment transactions derived from gateway events.
type Service interface {
	Apply(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.Transaction, bool, error)
	HasTransaction(ctx context.Context, orderID uuid.UUID, txnType enums.TransactionType) (bool, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error)
}

// ApplyInput captures the fields a gateway event contributes to a transaction.
type ApplyInput struct {
	OrderID   uuid.UUID
	ActionID  string
	PaymentID string
	EventType enums.GatewayEventType
	Amount    decimal.Decimal
	Currency  string
}

// ServiceParams wires the ledger service dependencies.
type ServiceParams struct {
	Repo Repository
	Logg *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires a transaction service with the provided repository.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	return &service{repo: params.Repo, logg: params.Logg}, nil
}

// Apply records the transaction a monitored gateway event produces. Events
// outside the monitored set are ignored. Replays of the same
// (order, action, type) triple are absorbed by the unique constraint and
// reported as not created.
func (s *service) Apply(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.Transaction, bool, error) {
	if input.OrderID == uuid.Nil {
		return nil, false, fmt.Errorf("order id is required")
	}
	if input.ActionID == "" {
		return nil, false, fmt.Errorf("action id is required")
	}

	txnType, monitored := TransactionTypeForEvent(input.EventType)
	if !monitored {
		return nil, false, nil
	}

	repo := s.repo.WithTx(tx)

	txn := &models.Transaction{
		OrderID:   input.OrderID,
		ActionID:  input.ActionID,
		Type:      txnType,
		PaymentID: input.PaymentID,
		Amount:    input.Amount,
		Currency:  input.Currency,
	}

	parent, err := s.resolveParent(ctx, repo, input.OrderID, txnType)
	if err != nil {
		return nil, false, err
	}
	if parent != nil {
		txn.ParentID = &parent.ID
	} else if txnType != enums.TransactionTypeAuthorization {
		s.warnMissingParent(ctx, input, txnType)
	}

	if err := repo.Create(ctx, txn); err != nil {
		if dbpkg.IsUniqueViolation(err, uqOrderActionType) {
			if s.logg != nil {
				logCtx := s.logg.WithActionID(ctx, input.ActionID)
				s.logg.Info(logCtx, "transaction already recorded, skipping")
			}
			return nil, false, nil
		}
		return nil, false, err
	}

	if err := s.closeParent(ctx, repo, txnType, parent, input.Amount); err != nil {
		return nil, false, err
	}

	if err := s.adoptOrphans(ctx, repo, txn); err != nil {
		return nil, false, err
	}

	return txn, true, nil
}

// resolveParent finds the transaction the new one settles against. A refund
// prefers the most recent closed capture; when none has closed yet it settles
// against the open capture it is refunding.
func (s *service) resolveParent(ctx context.Context, repo Repository, orderID uuid.UUID, txnType enums.TransactionType) (*models.Transaction, error) {
	switch txnType {
	case enums.TransactionTypeCapture, enums.TransactionTypeVoid:
		return repo.FindLatestByType(ctx, orderID, enums.TransactionTypeAuthorization)
	case enums.TransactionTypeRefund:
		parent, err := repo.FindLatestClosedByType(ctx, orderID, enums.TransactionTypeCapture)
		if err != nil || parent != nil {
			return parent, err
		}
		return repo.FindLatestByType(ctx, orderID, enums.TransactionTypeCapture)
	default:
		return nil, nil
	}
}

// adoptOrphans links children recorded before their parent arrived, so both
// delivery orders end with the same linkage. A late authorization adopts
// parentless captures and voids and is closed by them; a late capture adopts
// parentless refunds and closes once they cover its amount.
func (s *service) adoptOrphans(ctx context.Context, repo Repository, txn *models.Transaction) error {
	var childTypes []enums.TransactionType
	switch txn.Type {
	case enums.TransactionTypeAuthorization:
		childTypes = []enums.TransactionType{enums.TransactionTypeCapture, enums.TransactionTypeVoid}
	case enums.TransactionTypeCapture:
		childTypes = []enums.TransactionType{enums.TransactionTypeRefund}
	default:
		return nil
	}

	siblings, err := repo.ListByOrderID(ctx, txn.OrderID)
	if err != nil {
		return err
	}

	adopted := false
	refunded := decimal.Zero
	for _, sibling := range siblings {
		if sibling.ID == txn.ID || sibling.ParentID != nil || !containsType(childTypes, sibling.Type) {
			continue
		}
		if err := repo.SetParent(ctx, sibling.ID, txn.ID); err != nil {
			return err
		}
		adopted = true
		if sibling.Type == enums.TransactionTypeRefund {
			refunded = refunded.Add(sibling.Amount)
		}
	}
	if !adopted {
		return nil
	}

	switch txn.Type {
	case enums.TransactionTypeAuthorization:
		return repo.MarkClosed(ctx, txn.ID)
	case enums.TransactionTypeCapture:
		if refunded.GreaterThanOrEqual(txn.Amount) {
			return repo.MarkClosed(ctx, txn.ID)
		}
	}
	return nil
}

func containsType(types []enums.TransactionType, txnType enums.TransactionType) bool {
	for _, t := range types {
		if t == txnType {
			return true
		}
	}
	return false
}

func (s *service) warnMissingParent(ctx context.Context, input ApplyInput, txnType enums.TransactionType) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":  input.OrderID,
		"action_id": input.ActionID,
		"type":      txnType,
	})
	s.logg.Warn(logCtx, "no parent transaction recorded yet")
}

// closeParent settles the parent once the child consumes it. Captures and
// voids close the authorization; a refund closes the capture only when it
// returns the full captured amount.
func (s *service) closeParent(ctx context.Context, repo Repository, txnType enums.TransactionType, parent *models.Transaction, amount decimal.Decimal) error {
	if parent == nil || parent.Closed {
		return nil
	}
	switch txnType {
	case enums.TransactionTypeCapture, enums.TransactionTypeVoid:
		return repo.MarkClosed(ctx, parent.ID)
	case enums.TransactionTypeRefund:
		if amount.GreaterThanOrEqual(parent.Amount) {
			return repo.MarkClosed(ctx, parent.ID)
		}
	}
	return nil
}

func (s *service) HasTransaction(ctx context.Context, orderID uuid.UUID, txnType enums.TransactionType) (bool, error) {
	if orderID == uuid.Nil {
		return false, fmt.Errorf("order id is required")
	}
	if !txnType.IsValid() {
		return false, fmt.Errorf("invalid transaction type %q", txnType)
	}
	txn, err := s.repo.FindLatestByType(ctx, orderID, txnType)
	if err != nil {
		return false, err
	}
	return txn != nil, nil
}

func (s *service) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	if orderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	return s.repo.ListByOrderID(ctx, orderID)
}
