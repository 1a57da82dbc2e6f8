package retention

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/practice-code/checkout-reconciler/internal/webhooks"
	"github.com/practice-code/checkout-reconciler/pkg/config"
	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	"github.com/practice-code/checkout-reconciler/pkg/enums"
)

var sweepNow = time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)

func newTestSweeper(t *testing.T, store *fakeRecordStore, ledger *fakeLedger, ord *fakeOrderReader) *Sweeper {
	t.Helper()
	sweeper, err := NewSweeper(SweeperParams{
		Webhooks: store,
		Txns:     ledger,
		Orders:   ord,
		Gateway: config.GatewayConfig{
			APMMethodCodes: []string{"checkout_apm"},
		},
		Retention: config.RetentionConfig{
			GraceWindow:   5 * time.Minute,
			CommandMinAge: 24 * time.Hour,
		},
		Now: func() time.Time { return sweepNow },
	})
	if err != nil {
		t.Fatalf("building sweeper: %v", err)
	}
	return sweeper
}

func TestCleanRetainsRecordsInGraceWindow(t *testing.T) {
	ord := newFakeOrderReader("checkout_card")
	store := &fakeRecordStore{}
	store.add(ord.id, enums.GatewayEventPaymentDeclined, "act_1", sweepNow.Add(-time.Minute), true)

	sweeper := newTestSweeper(t, store, &fakeLedger{}, ord)
	deleted, err := sweeper.Clean(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 || len(store.rows) != 1 {
		t.Fatalf("fresh record must survive the sweep, deleted=%d", deleted)
	}
}

func TestCleanDeletesUnmonitoredRecords(t *testing.T) {
	ord := newFakeOrderReader("checkout_card")
	store := &fakeRecordStore{}
	store.add(ord.id, enums.GatewayEventPaymentDeclined, "act_1", sweepNow.Add(-time.Hour), false)

	sweeper := newTestSweeper(t, store, &fakeLedger{}, ord)
	deleted, err := sweeper.Clean(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 || len(store.rows) != 0 {
		t.Fatalf("unmonitored record should be deleted, deleted=%d", deleted)
	}
}

func TestCleanRetainsMonitoredRecordWithoutTransaction(t *testing.T) {
	ord := newFakeOrderReader("checkout_card")
	store := &fakeRecordStore{}
	store.add(ord.id, enums.GatewayEventPaymentApproved, "act_1", sweepNow.Add(-time.Hour), false)

	sweeper := newTestSweeper(t, store, &fakeLedger{}, ord)
	deleted, err := sweeper.Clean(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 || len(store.rows) != 1 {
		t.Fatal("records without a transaction must never be deleted")
	}
}

func TestCleanAuthorizationNeedsResolvedFate(t *testing.T) {
	ord := newFakeOrderReader("checkout_card")
	store := &fakeRecordStore{}
	store.add(ord.id, enums.GatewayEventPaymentApproved, "act_1", sweepNow.Add(-time.Hour), true)

	ledger := &fakeLedger{}
	ledger.add(ord.id, "act_1", enums.TransactionTypeAuthorization, false)

	sweeper := newTestSweeper(t, store, ledger, ord)
	deleted, err := sweeper.Clean(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Fatal("authorization without capture or void must be retained")
	}

	ledger.add(ord.id, "act_2", enums.TransactionTypeCapture, false)
	deleted, err = sweeper.Clean(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 || len(store.rows) != 0 {
		t.Fatalf("captured authorization should be deleted, deleted=%d", deleted)
	}
}

func TestCleanCaptureNeedsAuthorizationUnlessAPM(t *testing.T) {
	cardOrder := newFakeOrderReader("checkout_card")
	store := &fakeRecordStore{}
	store.add(cardOrder.id, enums.GatewayEventPaymentCaptured, "act_1", sweepNow.Add(-time.Hour), true)

	ledger := &fakeLedger{}
	ledger.add(cardOrder.id, "act_1", enums.TransactionTypeCapture, false)

	sweeper := newTestSweeper(t, store, ledger, cardOrder)
	deleted, err := sweeper.Clean(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Fatal("card capture without authorization must be retained")
	}

	apmOrder := newFakeOrderReader("checkout_apm")
	apmStore := &fakeRecordStore{}
	apmStore.add(apmOrder.id, enums.GatewayEventPaymentCaptured, "act_1", sweepNow.Add(-time.Hour), true)
	apmLedger := &fakeLedger{}
	apmLedger.add(apmOrder.id, "act_1", enums.TransactionTypeCapture, false)

	apmSweeper := newTestSweeper(t, apmStore, apmLedger, apmOrder)
	deleted, err = apmSweeper.Clean(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatal("APM capture has no authorization step and should be deleted")
	}
}

func TestCleanRefundNeedsClosedCapture(t *testing.T) {
	ord := newFakeOrderReader("checkout_card")
	store := &fakeRecordStore{}
	store.add(ord.id, enums.GatewayEventPaymentRefunded, "act_3", sweepNow.Add(-time.Hour), true)

	ledger := &fakeLedger{}
	ledger.add(ord.id, "act_1", enums.TransactionTypeAuthorization, true)
	ledger.add(ord.id, "act_2", enums.TransactionTypeCapture, false)
	ledger.add(ord.id, "act_3", enums.TransactionTypeRefund, false)

	sweeper := newTestSweeper(t, store, ledger, ord)
	deleted, err := sweeper.Clean(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Fatal("refund with open capture must be retained")
	}

	ledger.closeType(enums.TransactionTypeCapture)
	deleted, err = sweeper.Clean(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatal("refund with closed capture should be deleted")
	}
}

func TestCleanRangeFiltersByDateAndMinAge(t *testing.T) {
	ord := newFakeOrderReader("checkout_card")
	store := &fakeRecordStore{}
	old := time.Date(2025, 8, 10, 9, 30, 0, 0, time.UTC)
	store.add(ord.id, enums.GatewayEventPaymentApproved, "act_1", old, true)
	store.add(ord.id, enums.GatewayEventPaymentApproved, "act_2", sweepNow.Add(-time.Hour), true)

	sweeper := newTestSweeper(t, store, &fakeLedger{}, ord)
	date := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)
	deleted, err := sweeper.CleanRange(context.Background(), RangeOptions{Date: &date})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected exactly the dated record gone, deleted=%d", deleted)
	}
	if len(store.rows) != 1 || store.rows[0].ActionID != "act_2" {
		t.Fatal("record outside the date filter must survive")
	}
}

func TestCleanRangeSkipsUnprocessedRecords(t *testing.T) {
	ord := newFakeOrderReader("checkout_card")
	store := &fakeRecordStore{}
	old := time.Date(2025, 8, 10, 9, 30, 0, 0, time.UTC)
	store.add(ord.id, enums.GatewayEventPaymentApproved, "act_1", old, false)

	sweeper := newTestSweeper(t, store, &fakeLedger{}, ord)
	date := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)
	deleted, err := sweeper.CleanRange(context.Background(), RangeOptions{Date: &date})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 || len(store.rows) != 1 {
		t.Fatal("unprocessed records are outside the maintenance sweep")
	}
}

func TestCleanRangeRejectsConflictingFilters(t *testing.T) {
	ord := newFakeOrderReader("checkout_card")
	sweeper := newTestSweeper(t, &fakeRecordStore{}, &fakeLedger{}, ord)

	date := sweepNow
	if _, err := sweeper.CleanRange(context.Background(), RangeOptions{Date: &date, StartDate: &date}); err == nil {
		t.Fatal("expected validation error for conflicting filters")
	}
}

type fakeRecordStore struct {
	rows []*models.WebhookRecord
}

func (f *fakeRecordStore) add(orderID uuid.UUID, eventType enums.GatewayEventType, actionID string, receivedAt time.Time, processed bool) {
	f.rows = append(f.rows, &models.WebhookRecord{
		ID:         uuid.New(),
		EventID:    "evt_" + actionID,
		EventType:  eventType,
		OrderID:    orderID,
		ActionID:   actionID,
		Processed:  processed,
		ReceivedAt: receivedAt,
	})
}

func (f *fakeRecordStore) List(ctx context.Context, filter webhooks.Filter) ([]models.WebhookRecord, error) {
	var out []models.WebhookRecord
	for _, row := range f.rows {
		if filter.ReceivedBefore != nil && !row.ReceivedAt.Before(*filter.ReceivedBefore) {
			continue
		}
		if filter.ReceivedFrom != nil && row.ReceivedAt.Before(*filter.ReceivedFrom) {
			continue
		}
		if filter.ReceivedTo != nil && !row.ReceivedAt.Before(*filter.ReceivedTo) {
			continue
		}
		if filter.Processed != nil && row.Processed != *filter.Processed {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (f *fakeRecordStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	for i, row := range f.rows {
		if row.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeLedger struct {
	txns []models.Transaction
}

func (f *fakeLedger) add(orderID uuid.UUID, actionID string, txnType enums.TransactionType, closed bool) {
	f.txns = append(f.txns, models.Transaction{
		ID:       uuid.New(),
		OrderID:  orderID,
		ActionID: actionID,
		Type:     txnType,
		Closed:   closed,
	})
}

func (f *fakeLedger) closeType(txnType enums.TransactionType) {
	for i := range f.txns {
		if f.txns[i].Type == txnType {
			f.txns[i].Closed = true
		}
	}
}

func (f *fakeLedger) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, txn := range f.txns {
		if txn.OrderID == orderID {
			out = append(out, txn)
		}
	}
	return out, nil
}

type fakeOrderReader struct {
	id    uuid.UUID
	order *models.Order
}

func newFakeOrderReader(paymentMethod string) *fakeOrderReader {
	id := uuid.New()
	return &fakeOrderReader{
		id: id,
		order: &models.Order{
			ID:            id,
			Number:        "100000001",
			PaymentMethod: paymentMethod,
			State:         enums.OrderStateProcessing,
		},
	}
}

func (f *fakeOrderReader) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if f.order != nil && f.order.ID == orderID {
		return f.order, nil
	}
	return nil, nil
}
