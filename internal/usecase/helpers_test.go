package usecase_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"florist/internal/domain/model"
	repo "florist/internal/repository"
	"florist/internal/usecase"
)

// =====================
// Mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) Update(ctx context.Context, orderID string, u repo.OrderUpdate) (model.Order, error) {
	args := m.Called(ctx, orderID, u)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ApplyPaymentTransition(ctx context.Context, orderID string, t repo.PaymentTransition) (bool, error) {
	args := m.Called(ctx, orderID, t)
	return args.Bool(0), args.Error(1)
}

func (m *OrderRepoMock) ListPendingSync(ctx context.Context) ([]model.Order, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Error(1)
}

func (m *OrderRepoMock) MarkSyncAttempt(ctx context.Context, orderID string, at time.Time) error {
	args := m.Called(ctx, orderID, at)
	return args.Error(0)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) ListWithProducts(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateTransaction(ctx context.Context, in usecase.CreateTransactionInput) (usecase.CreateTransactionResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(usecase.CreateTransactionResult)
	return res, args.Error(1)
}

func (m *GatewayMock) QueryTransactionStatus(ctx context.Context, gatewayOrderID string) (usecase.Notification, error) {
	args := m.Called(ctx, gatewayOrderID)
	n, _ := args.Get(0).(usecase.Notification)
	return n, args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) PublishPaymentStatusChanged(ctx context.Context, ev usecase.PaymentStatusChanged) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type verifierFunc func(n usecase.Notification) bool

func (f verifierFunc) VerifyNotification(n usecase.Notification) bool { return f(n) }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2024, 11, 14, 22, 13, 20, 0, time.UTC)

// =====================
// In-memory store（シナリオ用）
// =====================

// 条件付きUPDATEの挙動までGORM実装と揃えたフェイク
type memStore struct {
	mu     sync.Mutex
	orders map[string]model.Order
	items  map[string][]model.OrderItem
	stock  map[int64]int64
	audits []model.AuditLog
	//IncreaseStockを失敗させる商品
	failStock map[int64]error
}

func newMemStore() *memStore {
	return &memStore{
		orders:    map[string]model.Order{},
		items:     map[string][]model.OrderItem{},
		stock:     map[int64]int64{},
		failStock: map[int64]error{},
	}
}

func (s *memStore) FindByID(_ context.Context, orderID string) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (s *memStore) Update(_ context.Context, orderID string, u repo.OrderUpdate) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.PaymentStatus != nil {
		o.PaymentStatus = *u.PaymentStatus
	}
	if u.PaymentMethod != nil {
		o.PaymentMethod = u.PaymentMethod
	}
	if u.MidtransOrderID != nil {
		o.MidtransOrderID = u.MidtransOrderID
	}
	if u.PaymentToken != nil {
		o.PaymentToken = u.PaymentToken
	}
	if u.PaymentURL != nil {
		o.PaymentURL = u.PaymentURL
	}
	o.UpdatedAt = u.UpdatedAt
	s.orders[orderID] = o
	return o, nil
}

func (s *memStore) ApplyPaymentTransition(_ context.Context, orderID string, t repo.PaymentTransition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status.IsFulfilled() {
		return false, nil
	}
	if t.Status == model.OrderStatusPending && o.Status == model.OrderStatusCancelled {
		return false, nil
	}
	if t.ClaimStockRestore {
		if o.StockRestoredAt != nil {
			return false, nil
		}
		at := t.UpdatedAt
		o.StockRestoredAt = &at
	}
	o.Status = t.Status
	o.PaymentStatus = t.PaymentStatus
	o.PaymentMethod = t.PaymentMethod
	o.UpdatedAt = t.UpdatedAt
	s.orders[orderID] = o
	return true, nil
}

func (s *memStore) ListPendingSync(_ context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.GatewayOrderID() != "" && o.PaymentStatus.IsPending() && o.Status != model.OrderStatusCancelled {
			out = append(out, o)
		}
	}
	//last_synced_at ASC NULLS FIRST, created_at, id
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.LastSyncedAt == nil) != (b.LastSyncedAt == nil) {
			return a.LastSyncedAt == nil
		}
		if a.LastSyncedAt != nil && !a.LastSyncedAt.Equal(*b.LastSyncedAt) {
			return a.LastSyncedAt.Before(*b.LastSyncedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *memStore) MarkSyncAttempt(_ context.Context, orderID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.LastSyncedAt = &at
	s.orders[orderID] = o
	return nil
}

func (s *memStore) ListWithProducts(_ context.Context, orderID string) ([]model.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OrderItem(nil), s.items[orderID]...), nil
}

func (s *memStore) IncreaseStock(_ context.Context, productID int64, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failStock[productID]; err != nil {
		return err
	}
	s.stock[productID] += qty
	return nil
}

func (s *memStore) Create(_ context.Context, log model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, log)
	return nil
}

func (s *memStore) List(_ context.Context, _ repo.AuditLogFilter) ([]model.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.audits...), nil
}

func (s *memStore) order(id string) model.Order {
	o, _ := s.FindByID(context.Background(), id)
	return o
}

func (s *memStore) newReconciler(events usecase.PaymentEventPublisher) *usecase.PaymentReconciler {
	return usecase.NewPaymentReconciler(s, s, s, s, events, fixedClock{testNow}, nil)
}

// 2明細（数量3と1）、在庫10と5の注文
func seedTwoItemOrder(s *memStore, id string, status model.OrderStatus, ps model.PaymentStatus) {
	gid := "ORDER-" + id + "-1731622400000"
	s.orders[id] = model.Order{
		ID:              id,
		UserID:          7,
		Status:          status,
		PaymentStatus:   ps,
		MidtransOrderID: &gid,
		Total:           350000,
	}
	s.items[id] = []model.OrderItem{
		{ID: 1, OrderID: id, ProductID: 101, ProductNameSnapshot: "Rose Bouquet", UnitPriceSnapshot: 100000, Quantity: 3},
		{ID: 2, OrderID: id, ProductID: 102, ProductNameSnapshot: "Tulip Box", UnitPriceSnapshot: 50000, Quantity: 1},
	}
	s.stock[101] = 10
	s.stock[102] = 5
}

func strPtr(s string) *string { return &s }

// =====================
// Helper: error contains
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if assert.True(t, ok, "err=%v is not HTTPError", err) {
		assert.Equal(t, want, he.Status)
	}
}
