package webhooks

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/practice-code/checkout-reconciler/internal/transactions"
	"github.com/practice-code/checkout-reconciler/internal/vault"
	dbpkg "github.com/practice-code/checkout-reconciler/pkg/db"
	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	"github.com/practice-code/checkout-reconciler/pkg/enums"
	pkgerrors "github.com/practice-code/checkout-reconciler/pkg/errors"
	"github.com/practice-code/checkout-reconciler/pkg/logger"
	"github.com/practice-code/checkout-reconciler/pkg/outbox"
)

const (
	uqRecordOrderActionEvent = "uq_webhook_records_order_action_event"
	uqRecordEventID          = "uq_webhook_records_event_id"
)

type orderReconciler interface {
	FindByNumber(ctx context.Context, number string) (*models.Order, error)
	ApplyTransaction(ctx context.Context, tx *gorm.DB, txn *models.Transaction) (*models.Order, error)
}

type transactionLedger interface {
	Apply(ctx context.Context, tx *gorm.DB, input transactions.ApplyInput) (*models.Transaction, bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type instrumentVault interface {
	SaveInstrument(ctx context.Context, input vault.SaveInstrumentInput) (*models.PaymentInstrument, error)
	HasSavedInstrument(ctx context.Context, customerID uuid.UUID) (bool, error)
}

// paymentEventTypes maps a recorded transaction to the domain event published
// for downstream consumers.
var paymentEventTypes = map[enums.TransactionType]enums.OutboxEventType{
	enums.TransactionTypeAuthorization: enums.EventPaymentAuthorized,
	enums.TransactionTypeCapture:       enums.EventPaymentCaptured,
	enums.TransactionTypeVoid:          enums.EventPaymentVoided,
	enums.TransactionTypeRefund:        enums.EventPaymentRefunded,
}

// PaymentEvent is the outbox payload published for each recorded transaction.
type PaymentEvent struct {
	OrderID     uuid.UUID             `json:"order_id"`
	OrderNumber string                `json:"order_number"`
	PaymentID   string                `json:"payment_id"`
	ActionID    string                `json:"action_id"`
	Type        enums.TransactionType `json:"type"`
	Amount      decimal.Decimal       `json:"amount"`
	Currency    string                `json:"currency"`
}

// ServiceParams wires the webhook ingestion dependencies.
type ServiceParams struct {
	Repo              Repository
	Orders            orderReconciler
	Ledger            transactionLedger
	Guard             eventGuard
	Outbox            outboxPublisher
	TransactionRunner txRunner
	Vault             instrumentVault
	Logg              *logger.Logger
}

// Service ingests gateway webhook events.
type Service struct {
	repo     Repository
	orders   orderReconciler
	ledger   transactionLedger
	guard    eventGuard
	outbox   outboxPublisher
	txRunner txRunner
	vault    instrumentVault
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook repo required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order reconciler required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction ledger required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event guard required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		repo:     params.Repo,
		orders:   params.Orders,
		ledger:   params.Ledger,
		guard:    params.Guard,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		vault:    params.Vault,
		logg:     params.Logg,
	}, nil
}

// IngestOne persists a gateway event and reconciles every pending record for
// its order. Events without an action id cannot produce transactions and are
// acknowledged without side effects.
func (s *Service) IngestOne(ctx context.Context, event *GatewayEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway event required")
	}

	ctx = s.logCtx(ctx, event)

	// unrecognized event types are kept for audit; they never produce a
	// transaction so the raw type string is stored as received
	eventType, err := event.EventType()
	if err != nil {
		eventType = enums.GatewayEventType(event.Type)
		if s.logg != nil {
			s.logg.Info(ctx, "unmapped event type recorded for audit")
		}
	}

	if event.Data.ActionID == "" {
		if s.logg != nil {
			s.logg.Warn(ctx, "missing action id for payment "+event.Data.ID)
		}
		return nil
	}

	seen, err := s.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim event id")
	}
	if seen {
		if s.logg != nil {
			s.logg.Info(ctx, "event already ingested, skipping")
		}
		return nil
	}

	order, err := s.orders.FindByNumber(ctx, event.Data.Reference)
	if err != nil {
		s.releaseGuard(ctx, event.ID)
		return err
	}
	if order == nil {
		s.releaseGuard(ctx, event.ID)
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for reference").
			WithDetails(map[string]any{"reference": event.Data.Reference})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.releaseGuard(ctx, event.ID)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal event payload")
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record := &models.WebhookRecord{
			EventID:     event.ID,
			EventType:   eventType,
			OrderID:     order.ID,
			OrderNumber: order.Number,
			PaymentID:   event.Data.ID,
			ActionID:    event.Data.ActionID,
			Amount:      event.Data.Amount,
			Currency:    event.Data.Currency,
			Payload:     payload,
		}
		if err := repo.Create(ctx, record); err != nil {
			if dbpkg.IsUniqueViolation(err, uqRecordOrderActionEvent) || dbpkg.IsUniqueViolation(err, uqRecordEventID) {
				if s.logg != nil {
					s.logg.Info(ctx, "webhook record already stored, skipping insert")
				}
			} else {
				return err
			}
		}

		return s.processPending(ctx, tx, order.ID)
	})
	if err != nil {
		s.releaseGuard(ctx, event.ID)
		return err
	}

	if eventType == enums.GatewayEventCardVerified {
		s.saveVerifiedInstrument(ctx, order, event)
	}
	return nil
}

// saveVerifiedInstrument stores the card a verification event carries. The
// webhook record is already committed, so a vault failure is logged rather
// than surfaced to the gateway.
func (s *Service) saveVerifiedInstrument(ctx context.Context, order *models.Order, event *GatewayEvent) {
	if s.vault == nil || order.CustomerID == nil || event.Data.Source == nil {
		return
	}

	has, err := s.vault.HasSavedInstrument(ctx, *order.CustomerID)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "check saved instruments failed", err)
		}
		return
	}

	source := event.Data.Source
	_, err = s.vault.SaveInstrument(ctx, vault.SaveInstrumentInput{
		CustomerID:  *order.CustomerID,
		SourceID:    source.ID,
		Scheme:      source.Scheme,
		Last4:       source.Last4,
		ExpiryMonth: source.ExpiryMonth,
		ExpiryYear:  source.ExpiryYear,
		IsDefault:   !has,
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "save verified instrument failed", err)
	}
}

// IngestAll reconciles every pending record stored for the order.
func (s *Service) IngestAll(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.processPending(ctx, tx, orderID)
	})
}

// processPending walks the order's unprocessed records in arrival order and
// applies the monitored ones to the transaction ledger and order state.
func (s *Service) processPending(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	records, err := repo.ListUnprocessedByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	for _, record := range records {
		if !transactions.IsMonitored(record.EventType) {
			continue
		}

		txn, created, err := s.ledger.Apply(ctx, tx, transactions.ApplyInput{
			OrderID:   record.OrderID,
			ActionID:  record.ActionID,
			PaymentID: record.PaymentID,
			EventType: record.EventType,
			Amount:    decimal.New(record.Amount, -2),
			Currency:  record.Currency,
		})
		if err != nil {
			return err
		}

		if created {
			if _, err := s.orders.ApplyTransaction(ctx, tx, txn); err != nil {
				return err
			}
			if err := s.emitPaymentEvent(ctx, tx, record, txn); err != nil {
				return err
			}
		}

		if err := repo.MarkProcessed(ctx, record.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) emitPaymentEvent(ctx context.Context, tx *gorm.DB, record models.WebhookRecord, txn *models.Transaction) error {
	eventType, ok := paymentEventTypes[txn.Type]
	if !ok {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   txn.ID,
		Source:        &outbox.SourceRef{Kind: "webhook", EventID: record.EventID},
		Data: PaymentEvent{
			OrderID:     txn.OrderID,
			OrderNumber: record.OrderNumber,
			PaymentID:   txn.PaymentID,
			ActionID:    txn.ActionID,
			Type:        txn.Type,
			Amount:      txn.Amount,
			Currency:    txn.Currency,
		},
		Version: 1,
	})
}

func (s *Service) releaseGuard(ctx context.Context, eventID string) {
	if err := s.guard.Delete(ctx, eventID); err != nil && s.logg != nil {
		s.logg.Error(ctx, "release event claim failed", err)
	}
}

func (s *Service) logCtx(ctx context.Context, event *GatewayEvent) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithEventID(ctx, event.ID)
	if event.Data.ActionID != "" {
		ctx = s.logg.WithActionID(ctx, event.Data.ActionID)
	}
	if event.Data.Reference != "" {
		ctx = s.logg.WithOrderID(ctx, event.Data.Reference)
	}
	return ctx
}
