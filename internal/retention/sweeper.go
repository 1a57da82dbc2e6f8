package retention

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/practice-code/checkout-reconciler/internal/transactions"
	"github.com/practice-code/checkout-reconciler/internal/webhooks"
	"github.com/practice-code/checkout-reconciler/pkg/config"
	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	"github.com/practice-code/checkout-reconciler/pkg/enums"
	pkgerrors "github.com/practice-code/checkout-reconciler/pkg/errors"
	"github.com/practice-code/checkout-reconciler/pkg/logger"
)

type recordStore interface {
	List(ctx context.Context, filter webhooks.Filter) ([]models.WebhookRecord, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type ledgerReader interface {
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error)
}

type orderReader interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// RangeOptions filters the maintenance sweep. Dates are inclusive and
// interpreted as whole days in UTC.
type RangeOptions struct {
	Date      *time.Time
	StartDate *time.Time
	EndDate   *time.Time
}

// SweeperParams wires the retention dependencies.
type SweeperParams struct {
	Webhooks  recordStore
	Txns      ledgerReader
	Orders    orderReader
	Gateway   config.GatewayConfig
	Retention config.RetentionConfig
	Logg      *logger.Logger
	Now       func() time.Time
}

// Sweeper deletes webhook records whose downstream transactions have
// resolved, keeping unresolved work for a future pass.
type Sweeper struct {
	webhooks  recordStore
	txns      ledgerReader
	orders    orderReader
	gateway   config.GatewayConfig
	retention config.RetentionConfig
	logg      *logger.Logger
	now       func() time.Time
}

func NewSweeper(params SweeperParams) (*Sweeper, error) {
	if params.Webhooks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook repo required")
	}
	if params.Txns == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction repo required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order repo required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		webhooks:  params.Webhooks,
		txns:      params.Txns,
		orders:    params.Orders,
		gateway:   params.Gateway,
		retention: params.Retention,
		logg:      params.Logg,
		now:       now,
	}, nil
}

// orderView caches the per-order data a sweep needs so each order is
// loaded once regardless of how many records reference it.
type orderView struct {
	order *models.Order
	txns  []models.Transaction
}

// Clean removes records that are safely superseded. Records inside the
// grace window are always retained, and monitored records survive until
// their transaction's fate is resolved.
func (s *Sweeper) Clean(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention.GraceWindow)
	records, err := s.webhooks.List(ctx, webhooks.Filter{ReceivedBefore: &cutoff})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "list webhook records")
	}

	views := map[uuid.UUID]*orderView{}
	var deleted int64
	for _, record := range records {
		eligible, err := s.eligibleForDeletion(ctx, record, views)
		if err != nil {
			return deleted, err
		}
		if !eligible {
			continue
		}
		if err := s.webhooks.DeleteByID(ctx, record.ID); err != nil {
			return deleted, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "delete webhook record")
		}
		deleted++
	}

	if s.logg != nil && deleted > 0 {
		s.logg.Info(s.logg.WithField(ctx, "deleted", deleted), "webhook retention sweep finished")
	}
	return deleted, nil
}

// CleanRange deletes processed records matching the date filter. The
// maintenance path ignores closure rules but never touches records
// younger than the command floor.
func (s *Sweeper) CleanRange(ctx context.Context, opts RangeOptions) (int64, error) {
	filter, err := s.rangeFilter(opts)
	if err != nil {
		return 0, err
	}

	records, err := s.webhooks.List(ctx, filter)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "list webhook records")
	}

	var deleted int64
	for _, record := range records {
		if err := s.webhooks.DeleteByID(ctx, record.ID); err != nil {
			return deleted, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "delete webhook record")
		}
		deleted++
	}
	return deleted, nil
}

func (s *Sweeper) rangeFilter(opts RangeOptions) (webhooks.Filter, error) {
	if opts.Date != nil && (opts.StartDate != nil || opts.EndDate != nil) {
		return webhooks.Filter{}, pkgerrors.New(pkgerrors.CodeValidation, "date and date range are mutually exclusive")
	}

	processed := true
	filter := webhooks.Filter{Processed: &processed}

	floor := s.now().Add(-s.retention.CommandMinAge)
	filter.ReceivedBefore = &floor

	if opts.Date != nil {
		from := startOfDay(*opts.Date)
		to := from.Add(24 * time.Hour)
		filter.ReceivedFrom = &from
		filter.ReceivedTo = &to
		return filter, nil
	}
	if opts.StartDate != nil {
		from := startOfDay(*opts.StartDate)
		filter.ReceivedFrom = &from
	}
	if opts.EndDate != nil {
		to := startOfDay(*opts.EndDate).Add(24 * time.Hour)
		filter.ReceivedTo = &to
	}
	if opts.StartDate != nil && opts.EndDate != nil && opts.EndDate.Before(*opts.StartDate) {
		return webhooks.Filter{}, pkgerrors.New(pkgerrors.CodeValidation, "end date precedes start date")
	}
	return filter, nil
}

func (s *Sweeper) eligibleForDeletion(ctx context.Context, record models.WebhookRecord, views map[uuid.UUID]*orderView) (bool, error) {
	txnType, monitored := transactions.TransactionTypeForEvent(record.EventType)
	if !monitored {
		return true, nil
	}

	view, err := s.loadOrderView(ctx, record.OrderID, views)
	if err != nil {
		return false, err
	}
	if view.order == nil {
		// record orphaned by a deleted order, nothing downstream depends on it
		return true, nil
	}

	if !hasTransaction(view.txns, record.ActionID, txnType) {
		return false, nil
	}

	switch txnType {
	case enums.TransactionTypeAuthorization:
		return hasAnyOfType(view.txns, enums.TransactionTypeCapture) ||
			hasAnyOfType(view.txns, enums.TransactionTypeVoid), nil
	case enums.TransactionTypeCapture:
		if hasAnyOfType(view.txns, enums.TransactionTypeAuthorization) {
			return true, nil
		}
		return s.gateway.IsAlternativeMethod(view.order.PaymentMethod), nil
	case enums.TransactionTypeVoid:
		return hasAnyOfType(view.txns, enums.TransactionTypeAuthorization), nil
	case enums.TransactionTypeRefund:
		return hasAnyOfType(view.txns, enums.TransactionTypeAuthorization) &&
			hasClosedOfType(view.txns, enums.TransactionTypeCapture), nil
	}
	return false, nil
}

func (s *Sweeper) loadOrderView(ctx context.Context, orderID uuid.UUID, views map[uuid.UUID]*orderView) (*orderView, error) {
	if view, ok := views[orderID]; ok {
		return view, nil
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "load order")
	}

	view := &orderView{order: order}
	if order != nil {
		txns, err := s.txns.ListByOrderID(ctx, orderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDatabase, err, "load order transactions")
		}
		view.txns = txns
	}
	views[orderID] = view
	return view, nil
}

func hasTransaction(txns []models.Transaction, actionID string, txnType enums.TransactionType) bool {
	for _, txn := range txns {
		if txn.ActionID == actionID && txn.Type == txnType {
			return true
		}
	}
	return false
}

func hasAnyOfType(txns []models.Transaction, txnType enums.TransactionType) bool {
	for _, txn := range txns {
		if txn.Type == txnType {
			return true
		}
	}
	return false
}

func hasClosedOfType(txns []models.Transaction, txnType enums.TransactionType) bool {
	for _, txn := range txns {
		if txn.Type == txnType && txn.Closed {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
