package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/practice-code/checkout-reconciler/pkg/config"
	"github.com/practice-code/checkout-reconciler/pkg/db/models"
	"github.com/practice-code/checkout-reconciler/pkg/enums"
	"github.com/practice-code/checkout-reconciler/pkg/outbox"
)

var testStatuses = config.OrderStatusConfig{
	Pending:    "pending",
	Authorized: "authorized",
	Captured:   "processing",
	Voided:     "canceled",
	Refunded:   "refunded",
}

func TestApplyAuthorizationMovesPendingOrder(t *testing.T) {
	repo, ob, svc := newTestService(t)
	order := repo.seed(t, "100000001", enums.OrderStateNew, "pending", 100)

	got, err := svc.ApplyTransaction(context.Background(), nil, txnOfType(order.ID, enums.TransactionTypeAuthorization, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != enums.OrderStateProcessing || got.Status != "authorized" {
		t.Fatalf("unexpected state %s/%s", got.State, got.Status)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventOrderStatusChanged {
		t.Fatalf("expected one status changed event, got %+v", ob.events)
	}
}

func TestApplyAuthorizationSkipsProgressedOrder(t *testing.T) {
	repo, ob, svc := newTestService(t)
	order := repo.seed(t, "100000002", enums.OrderStateProcessing, "processing", 100)

	got, err := svc.ApplyTransaction(context.Background(), nil, txnOfType(order.ID, enums.TransactionTypeAuthorization, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != "processing" {
		t.Fatalf("authorization must not rewind status, got %s", got.Status)
	}
	if len(ob.events) != 0 {
		t.Fatal("no event expected when nothing changed")
	}
}

func TestApplyCaptureSetsProcessing(t *testing.T) {
	repo, _, svc := newTestService(t)
	order := repo.seed(t, "100000003", enums.OrderStateNew, "pending", 100)

	got, err := svc.ApplyTransaction(context.Background(), nil, txnOfType(order.ID, enums.TransactionTypeCapture, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != enums.OrderStateProcessing || got.Status != "processing" {
		t.Fatalf("unexpected state %s/%s", got.State, got.Status)
	}
}

func TestApplyVoidCancelsOrder(t *testing.T) {
	repo, _, svc := newTestService(t)
	order := repo.seed(t, "100000004", enums.OrderStateProcessing, "authorized", 100)

	got, err := svc.ApplyTransaction(context.Background(), nil, txnOfType(order.ID, enums.TransactionTypeVoid, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != enums.OrderStateCanceled || got.Status != "canceled" {
		t.Fatalf("unexpected state %s/%s", got.State, got.Status)
	}
}

func TestApplyFullRefundClosesOrder(t *testing.T) {
	repo, _, svc := newTestService(t)
	order := repo.seed(t, "100000005", enums.OrderStateProcessing, "processing", 100)

	got, err := svc.ApplyTransaction(context.Background(), nil, txnOfType(order.ID, enums.TransactionTypeRefund, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != enums.OrderStateClosed || got.Status != "refunded" {
		t.Fatalf("unexpected state %s/%s", got.State, got.Status)
	}
	if !got.TotalRefunded.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected refunded total %s", got.TotalRefunded)
	}
}

func TestApplyPartialRefundKeepsStatus(t *testing.T) {
	repo, _, svc := newTestService(t)
	order := repo.seed(t, "100000006", enums.OrderStateProcessing, "processing", 100)

	got, err := svc.ApplyTransaction(context.Background(), nil, txnOfType(order.ID, enums.TransactionTypeRefund, 40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != enums.OrderStateProcessing || got.Status != "processing" {
		t.Fatalf("partial refund must not change status, got %s/%s", got.State, got.Status)
	}
	latest := repo.latestHistory(order.ID)
	if latest == nil || latest.Comment == nil || *latest.Comment == "" {
		t.Fatal("partial refund should leave a history comment")
	}
}

func TestApplyStatusSkipsTerminalOrders(t *testing.T) {
	repo, ob, svc := newTestService(t)
	order := repo.seed(t, "100000007", enums.OrderStateClosed, "closed", 100)

	got, err := svc.ApplyTransaction(context.Background(), nil, txnOfType(order.ID, enums.TransactionTypeCapture, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != enums.OrderStateClosed || got.Status != "closed" {
		t.Fatalf("terminal order must not change, got %s/%s", got.State, got.Status)
	}
	if len(ob.events) != 0 {
		t.Fatal("no event expected for skipped override")
	}
}

func TestRecordCreditMemoSetsRefundedStatus(t *testing.T) {
	repo, _, svc := newTestService(t)
	order := repo.seed(t, "100000008", enums.OrderStateProcessing, "processing", 100)

	err := svc.RecordCreditMemo(context.Background(), CreditMemoInput{
		OrderID: order.ID,
		Amount:  decimal.NewFromInt(25),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := repo.byID(order.ID)
	if got.Status != "refunded" {
		t.Fatalf("expected refunded status, got %s", got.Status)
	}
	latest := repo.latestHistory(order.ID)
	if latest == nil || latest.Comment == nil || *latest.Comment != "refunded" {
		t.Fatalf("expected status mirrored into history comment, got %+v", latest)
	}
}

func TestRecordCreditMemoKeepsClosedOrders(t *testing.T) {
	repo, _, svc := newTestService(t)
	order := repo.seed(t, "100000009", enums.OrderStateComplete, "complete", 100)

	err := svc.RecordCreditMemo(context.Background(), CreditMemoInput{
		OrderID: order.ID,
		Amount:  decimal.NewFromInt(25),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := repo.byID(order.ID)
	if got.Status != "complete" {
		t.Fatalf("complete order must keep its status, got %s", got.Status)
	}
	if !got.TotalRefunded.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("refund total should still accumulate, got %s", got.TotalRefunded)
	}
}

func TestRecordCreditMemoRejectsNonPositiveAmount(t *testing.T) {
	_, _, svc := newTestService(t)

	err := svc.RecordCreditMemo(context.Background(), CreditMemoInput{
		OrderID: uuid.New(),
		Amount:  decimal.Zero,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSyncRederivesStateFromTransactions(t *testing.T) {
	repo, ob, svc, lister := newTestServiceWithLister(t)
	order := repo.seed(t, "100000010", enums.OrderStateNew, "pending", 100)

	lister.txns = []models.Transaction{
		*txnOfType(order.ID, enums.TransactionTypeAuthorization, 100),
		*txnOfType(order.ID, enums.TransactionTypeCapture, 100),
		*txnOfType(order.ID, enums.TransactionTypeRefund, 100),
	}

	got, err := svc.Sync(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != enums.OrderStateClosed || got.Status != "refunded" {
		t.Fatalf("unexpected state %s/%s", got.State, got.Status)
	}
	if !got.TotalRefunded.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected refund total %s", got.TotalRefunded)
	}
	if len(ob.events) != 1 {
		t.Fatalf("expected one status event, got %d", len(ob.events))
	}

	// replaying sync is a no-op
	ob.events = nil
	if _, err := svc.Sync(context.Background(), order.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ob.events) != 0 {
		t.Fatal("second sync should not emit events")
	}
}

func newTestService(t *testing.T) (*fakeOrderRepo, *fakeOutbox, Service) {
	repo, ob, svc, _ := newTestServiceWithLister(t)
	return repo, ob, svc
}

func newTestServiceWithLister(t *testing.T) (*fakeOrderRepo, *fakeOutbox, Service, *fakeTxnLister) {
	t.Helper()
	repo := newFakeOrderRepo()
	ob := &fakeOutbox{}
	lister := &fakeTxnLister{}
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Tx:       fakeTxRunner{},
		Outbox:   ob,
		Txns:     lister,
		Statuses: testStatuses,
	})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return repo, ob, svc, lister
}

func txnOfType(orderID uuid.UUID, txnType enums.TransactionType, amount int64) *models.Transaction {
	return &models.Transaction{
		ID:      uuid.New(),
		OrderID: orderID,
		Type:    txnType,
		Amount:  decimal.NewFromInt(amount),
	}
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeTxnLister struct {
	txns []models.Transaction
}

func (f *fakeTxnLister) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	return f.txns, nil
}

type fakeOrderRepo struct {
	orders  map[uuid.UUID]*models.Order
	history []*models.OrderStatusHistory
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeOrderRepo) seed(t *testing.T, number string, state enums.OrderState, status string, total int64) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		Number:        number,
		State:         state,
		Status:        status,
		Currency:      "USD",
		GrandTotal:    decimal.NewFromInt(total),
		TotalRefunded: decimal.Zero,
	}
	f.orders[order.ID] = order
	return order
}

func (f *fakeOrderRepo) byID(id uuid.UUID) *models.Order {
	return f.orders[id]
}

func (f *fakeOrderRepo) latestHistory(orderID uuid.UUID) *models.OrderStatusHistory {
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].OrderID == orderID {
			return f.history[i]
		}
	}
	return nil
}

func (f *fakeOrderRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	copy := *order
	return &copy, nil
}

func (f *fakeOrderRepo) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	for _, order := range f.orders {
		if order.Number == number {
			copy := *order
			return &copy, nil
		}
	}
	return nil, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, orderID uuid.UUID, state enums.OrderState, status string, comment *string) error {
	order := f.orders[orderID]
	order.State = state
	order.Status = status
	f.history = append(f.history, &models.OrderStatusHistory{
		ID:      uuid.New(),
		OrderID: orderID,
		State:   state,
		Status:  status,
		Comment: comment,
	})
	return nil
}

func (f *fakeOrderRepo) AddRefundedAmount(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error {
	order := f.orders[orderID]
	order.TotalRefunded = order.TotalRefunded.Add(amount)
	return nil
}

func (f *fakeOrderRepo) SetRefundedAmount(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) error {
	f.orders[orderID].TotalRefunded = amount
	return nil
}

func (f *fakeOrderRepo) LatestHistory(ctx context.Context, orderID uuid.UUID) (*models.OrderStatusHistory, error) {
	entry := f.latestHistory(orderID)
	if entry == nil {
		return nil, nil
	}
	copy := *entry
	return &copy, nil
}

func (f *fakeOrderRepo) UpdateHistoryComment(ctx context.Context, historyID uuid.UUID, comment string) error {
	for _, entry := range f.history {
		if entry.ID == historyID {
			entry.Comment = &comment
		}
	}
	return nil
}
