package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kicksvault/storefront/internal/cart"
	"github.com/kicksvault/storefront/internal/domain"
	"github.com/kicksvault/storefront/internal/events"
	"github.com/kicksvault/storefront/internal/metrics"
	"github.com/kicksvault/storefront/internal/orderapi"
	"github.com/kicksvault/storefront/internal/pricing"
	"github.com/kicksvault/storefront/internal/repository"
	"github.com/kicksvault/storefront/internal/repository/memory"
	apperrors "github.com/kicksvault/storefront/pkg/errors"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakePlacer struct {
	mu        sync.Mutex
	createErr error
	cancelErr error
	created   []orderapi.CreateOrderRequest
	cancelled []uuid.UUID
	remote    map[uuid.UUID]*domain.Order
	// onCancel runs after a successful remote cancel, before it returns
	onCancel func()
}

func newFakePlacer() *fakePlacer {
	return &fakePlacer{remote: make(map[uuid.UUID]*domain.Order)}
}

func (f *fakePlacer) CreateOrder(_ context.Context, req orderapi.CreateOrderRequest) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &domain.Order{ID: uuid.New(), Status: domain.OrderStatusPending, PaymentStatus: domain.PaymentStatusUnpaid}, nil
}

func (f *fakePlacer) CancelOrder(_ context.Context, orderID uuid.UUID, _ string) error {
	f.mu.Lock()
	if f.cancelErr != nil {
		f.mu.Unlock()
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	hook := f.onCancel
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakePlacer) GetOrder(_ context.Context, orderID uuid.UUID) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.remote[orderID]
	if !ok {
		return nil, &apperrors.ErrNotFound{Resource: "order", ID: orderID.String()}
	}
	c := *order
	return &c, nil
}

type fakeCatalog map[domain.ProductID]*domain.Product

func (c fakeCatalog) GetProduct(_ context.Context, id domain.ProductID) (*domain.Product, error) {
	p, ok := c[id]
	if !ok {
		return nil, &apperrors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	return p, nil
}

func newService(t *testing.T, placer OrderPlacer, logger *zap.Logger, opts ...Option) *OrderService {
	t.Helper()
	engine, err := pricing.NewEngine(pricing.DefaultConfig())
	require.NoError(t, err)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewOrderService(placer, engine, logger, opts...)
}

func filledCart(t *testing.T) *cart.Store {
	t.Helper()
	ctx := context.Background()
	s, err := cart.Open(ctx, memory.NewScopeStore(), "user:1", zap.NewNop(), nil)
	require.NoError(t, err)

	p := domain.Product{ID: "1", Name: "Court Low", Brand: "Kicks", Price: 2_000_000, Stock: 10, Image: "court.png"}
	_, err = s.Add(ctx, p, 2, nil, "white")
	require.NoError(t, err)

	maxDiscount := domain.Money(300_000)
	require.NoError(t, s.SelectVoucher(ctx, &domain.Voucher{
		Code:          "TEN",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: 10,
		MaxDiscount:   &maxDiscount,
		ExpiryDate:    fixedNow.Add(48 * time.Hour),
		UsageLimit:    10,
		IsActive:      true,
	}))
	return s
}

func checkout() CheckoutRequest {
	return CheckoutRequest{
		CustomerInfo: domain.CustomerInfo{
			FullName: "Nguyen Lan",
			Phone:    "0900000000",
			Email:    "lan@example.com",
			Address:  "1 Trang Tien",
			City:     "Hanoi",
			Ward:     "Hoan Kiem",
		},
		PaymentMethod: "cod",
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	ctx := context.Background()
	placer := newFakePlacer()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := newService(t, placer, zap.NewNop(), WithMetrics(m))
	store := filledCart(t)

	order, breakdown, err := svc.PlaceOrder(ctx, store, checkout())
	require.NoError(t, err)

	assert.Equal(t, domain.Money(3_740_000), breakdown.Total)
	assert.Equal(t, breakdown.Total, order.TotalAmount)
	assert.Equal(t, order.Subtotal+order.VATAmount+order.ShippingFee-order.DiscountAmount, order.TotalAmount)
	require.NotNil(t, order.VoucherCode)
	assert.Equal(t, "TEN", *order.VoucherCode)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusUnpaid, order.PaymentStatus)

	require.Len(t, placer.created, 1)
	sent := placer.created[0]
	assert.NotEqual(t, uuid.Nil, sent.RequestID)
	assert.False(t, sent.IsPaid)
	require.Len(t, sent.Items, 1)
	assert.Equal(t, domain.OrderItem{
		ProductID:    "1",
		ProductName:  "Court Low",
		ProductBrand: "Kicks",
		ProductImage: "court.png",
		Price:        2_000_000,
		Quantity:     2,
		Color:        "white",
	}, sent.Items[0])

	assert.Empty(t, store.Items())
	assert.Nil(t, store.Voucher())

	info, err := store.ShippingInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Nguyen Lan", info.FullName)
	assert.Equal(t, "Hoan Kiem", info.Ward)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.OrdersPlaced.WithLabelValues("success")))

	tracked, err := svc.GetOrder(ctx, "user:1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalAmount, tracked.TotalAmount)
}

func TestPlaceOrderSnapshotIsFrozen(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakePlacer(), zap.NewNop())

	order, _, err := svc.PlaceOrder(ctx, filledCart(t), checkout())
	require.NoError(t, err)

	order.Items[0].Price = 1
	tracked, err := svc.GetOrder(ctx, "user:1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(2_000_000), tracked.Items[0].Price)
}

func TestPlaceOrderFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	placer := newFakePlacer()
	placer.createErr = &apperrors.ErrOrderPlacement{StatusCode: 400, ServerMessage: "out of stock"}
	svc := newService(t, placer, zap.NewNop())
	store := filledCart(t)

	_, _, err := svc.PlaceOrder(ctx, store, checkout())
	require.Error(t, err)
	assert.Equal(t, "out of stock", err.Error())

	assert.Len(t, store.Items(), 1)
	assert.NotNil(t, store.Voucher())
	info, err := store.ShippingInfo(ctx)
	require.NoError(t, err)
	assert.Nil(t, info)
	orders, err := svc.ListOrders(ctx, AnyOwner)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrderWrapsTransportErrors(t *testing.T) {
	placer := newFakePlacer()
	placer.createErr = errors.New("connection reset")
	svc := newService(t, placer, zap.NewNop())

	_, _, err := svc.PlaceOrder(context.Background(), filledCart(t), checkout())

	var placement *apperrors.ErrOrderPlacement
	require.True(t, errors.As(err, &placement))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPlaceOrderValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakePlacer(), zap.NewNop())

	empty, err := cart.Open(ctx, memory.NewScopeStore(), "guest", nil, nil)
	require.NoError(t, err)
	_, _, err = svc.PlaceOrder(ctx, empty, checkout())
	var validation *apperrors.ErrValidation
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "items", validation.Field)

	req := checkout()
	req.PaymentMethod = "  "
	_, _, err = svc.PlaceOrder(ctx, filledCart(t), req)
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "paymentMethod", validation.Field)
}

func placeOne(t *testing.T, svc *OrderService) *domain.Order {
	t.Helper()
	order, _, err := svc.PlaceOrder(context.Background(), filledCart(t), checkout())
	require.NoError(t, err)
	return order
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	placer := newFakePlacer()
	svc := newService(t, placer, zap.NewNop())
	order := placeOne(t, svc)

	_, err := svc.CancelOrder(ctx, "user:1", order.ID, "   ", domain.CancelledByUser)
	var validation *apperrors.ErrValidation
	assert.True(t, errors.As(err, &validation))

	cancelled, err := svc.CancelOrder(ctx, "user:1", order.ID, "ordered the wrong size", domain.CancelledByUser)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "ordered the wrong size", *cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, domain.CancelledByUser, *cancelled.CancelledBy)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, fixedNow, *cancelled.CancelledAt)
	assert.Equal(t, []uuid.UUID{order.ID}, placer.cancelled)

	_, err = svc.CancelOrder(ctx, "user:1", order.ID, "again", domain.CancelledByAdmin)
	var transition *apperrors.ErrInvalidStateTransition
	assert.True(t, errors.As(err, &transition))

	_, err = svc.CancelOrder(ctx, "user:1", uuid.New(), "nope", domain.CancelledByUser)
	var notFound *apperrors.ErrNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestCancelGuardsByActor(t *testing.T) {
	assert.True(t, CanCancel(domain.OrderStatusPending, domain.CancelledByUser))
	assert.False(t, CanCancel(domain.OrderStatusProcessing, domain.CancelledByUser))
	assert.True(t, CanCancel(domain.OrderStatusProcessing, domain.CancelledByAdmin))
	assert.False(t, CanCancel(domain.OrderStatusShipped, domain.CancelledByAdmin))
	assert.False(t, CanCancel(domain.OrderStatusDelivered, domain.CancelledByAdmin))
}

func TestCancelProcessingOrderAsAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakePlacer(), zap.NewNop())
	order := placeOne(t, svc)

	processing := domain.OrderStatusProcessing
	_, err := svc.ApplyEvent(ctx, domain.StatusEvent{OrderID: order.ID, Status: &processing})
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, "user:1", order.ID, "fraud check", domain.CancelledByUser)
	var transition *apperrors.ErrInvalidStateTransition
	require.True(t, errors.As(err, &transition))

	cancelled, err := svc.CancelOrder(ctx, "user:1", order.ID, "fraud check", domain.CancelledByAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.CancelledByAdmin, *cancelled.CancelledBy)
}

func TestReconcileMergesFieldByField(t *testing.T) {
	svc := newService(t, newFakePlacer(), zap.NewNop())
	order := &domain.Order{ID: uuid.New(), Status: domain.OrderStatusPending, PaymentStatus: domain.PaymentStatusUnpaid}

	paid := domain.PaymentStatusPaid
	at := fixedNow.Add(time.Hour)
	result := svc.Reconcile(order, domain.StatusEvent{OrderID: order.ID, PaymentStatus: &paid, OccurredAt: at})

	assert.Equal(t, []string{"paymentStatus"}, result.Applied)
	assert.NoError(t, result.Conflict)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, at, order.UpdatedAt)

	shipped := domain.OrderStatusShipped
	result = svc.Reconcile(order, domain.StatusEvent{OrderID: order.ID, Status: &shipped})
	assert.Equal(t, []string{"status"}, result.Applied)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, fixedNow, order.UpdatedAt)
}

func TestReconcileNeverMovesTerminalStatus(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := newService(t, newFakePlacer(), zap.New(core), WithMetrics(m))

	order := &domain.Order{ID: uuid.New(), Status: domain.OrderStatusCancelled, PaymentStatus: domain.PaymentStatusUnpaid}
	shipped := domain.OrderStatusShipped
	paid := domain.PaymentStatusPaid

	result := svc.Reconcile(order, domain.StatusEvent{OrderID: order.ID, Status: &shipped, PaymentStatus: &paid})

	var conflict *apperrors.ErrReconciliationConflict
	require.True(t, errors.As(result.Conflict, &conflict))
	assert.Equal(t, domain.OrderStatusCancelled, conflict.Local)
	assert.Equal(t, domain.OrderStatusShipped, conflict.Pushed)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, []string{"paymentStatus"}, result.Applied)

	entries := logs.FilterMessage("Reconciliation conflict").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, order.ID.String(), fields["order_id"])
	assert.Equal(t, "cancelled", fields["local_status"])
	assert.Equal(t, "shipped", fields["pushed_status"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReconciliationConflicts))
}

func TestReconcileIgnoresUnknownStatus(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	svc := newService(t, newFakePlacer(), zap.New(core))
	order := &domain.Order{ID: uuid.New(), Status: domain.OrderStatusPending}

	lost := domain.OrderStatus("lost")
	result := svc.Reconcile(order, domain.StatusEvent{OrderID: order.ID, Status: &lost})

	assert.Empty(t, result.Applied)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, 1, logs.FilterMessage("Ignoring pushed order status").Len())
}

func TestReconcilePushedCancellationStampsTime(t *testing.T) {
	svc := newService(t, newFakePlacer(), zap.NewNop())
	order := &domain.Order{ID: uuid.New(), Status: domain.OrderStatusProcessing}

	cancelled := domain.OrderStatusCancelled
	svc.Reconcile(order, domain.StatusEvent{OrderID: order.ID, Status: &cancelled})

	require.NotNil(t, order.CancelledAt)
	assert.Equal(t, fixedNow, *order.CancelledAt)
}

func TestWatchAppliesEvents(t *testing.T) {
	svc := newService(t, newFakePlacer(), zap.NewNop())
	order := placeOne(t, svc)

	src := events.NewChannelSource(4)
	done := make(chan struct{})
	go func() {
		svc.Watch(context.Background(), src)
		close(done)
	}()

	processing := domain.OrderStatusProcessing
	paid := domain.PaymentStatusPaid
	require.NoError(t, src.Publish(context.Background(), domain.StatusEvent{OrderID: uuid.New(), Status: &processing}))
	require.NoError(t, src.Publish(context.Background(), domain.StatusEvent{OrderID: order.ID, Status: &processing}))
	require.NoError(t, src.Publish(context.Background(), domain.StatusEvent{OrderID: order.ID, PaymentStatus: &paid}))
	src.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after the source closed")
	}

	tracked, err := svc.GetOrder(context.Background(), "user:1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, tracked.Status)
	assert.Equal(t, domain.PaymentStatusPaid, tracked.PaymentStatus)
}

// deliveredOrder exists only on the order service side and is indexed as
// belonging to user:1
func deliveredOrder(t *testing.T, placer *fakePlacer, scopes repository.ScopeStore) *domain.Order {
	t.Helper()
	order := &domain.Order{
		ID:     uuid.New(),
		Status: domain.OrderStatusDelivered,
		Items: []domain.OrderItem{
			{ProductID: "1", ProductName: "Court Low", Price: 1_800_000, Quantity: 2, VariantName: "42", SKU: "CL-42"},
			{ProductID: "2", ProductName: "Socks", Price: 50_000, Quantity: 3},
		},
	}
	placer.remote[order.ID] = order
	raw, err := json.Marshal([]uuid.UUID{order.ID})
	require.NoError(t, err)
	require.NoError(t, scopes.Write(context.Background(), "user:1", repository.KeyOrders, raw))
	return order
}

func TestReorderUsesHistoricalPrice(t *testing.T) {
	ctx := context.Background()
	placer := newFakePlacer()
	scopes := memory.NewScopeStore()
	order := deliveredOrder(t, placer, scopes)
	svc := newService(t, placer, zap.NewNop(), WithOrderIndex(scopes))

	store, err := cart.Open(ctx, scopes, "user:1", nil, nil)
	require.NoError(t, err)

	result, err := svc.Reorder(ctx, order.ID, store)
	require.NoError(t, err)
	assert.Len(t, result.Lines, 2)
	assert.Empty(t, result.Skipped)

	item, ok := store.Find(domain.LineKey{ProductID: "1", Variant: "42"})
	require.True(t, ok)
	assert.Equal(t, domain.Money(1_800_000), item.UnitPrice())
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 5, store.TotalItems())
}

func TestReorderWithCatalogClampsAndSkips(t *testing.T) {
	ctx := context.Background()
	placer := newFakePlacer()
	scopes := memory.NewScopeStore()
	order := deliveredOrder(t, placer, scopes)
	catalog := fakeCatalog{
		"1": {ID: "1", Price: 2_000_000, Stock: 10, Variants: []domain.Variant{{Name: "Size", Options: []domain.VariantOption{
			{Name: "42", Price: 2_000_000, Stock: 1},
		}}}},
	}
	svc := newService(t, placer, zap.NewNop(), WithCatalog(catalog), WithOrderIndex(scopes))

	store, err := cart.Open(ctx, scopes, "user:1", nil, nil)
	require.NoError(t, err)

	result, err := svc.Reorder(ctx, order.ID, store)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, 1, result.Lines[0].Quantity)
	assert.True(t, result.Lines[0].Clamp.WasClamped)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, domain.ProductID("2"), result.Skipped[0].ProductID)

	item, ok := store.Find(domain.LineKey{ProductID: "1", Variant: "42"})
	require.True(t, ok)
	assert.Equal(t, domain.Money(1_800_000), item.UnitPrice())
}

func TestReorderRequiresDelivered(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakePlacer(), zap.NewNop())
	order := placeOne(t, svc)

	store, err := cart.Open(ctx, memory.NewScopeStore(), "user:1", nil, nil)
	require.NoError(t, err)

	_, err = svc.Reorder(ctx, order.ID, store)
	var validation *apperrors.ErrValidation
	assert.True(t, errors.As(err, &validation))
	assert.Empty(t, store.Items())
}

func TestListOrdersNewestFirst(t *testing.T) {
	placer := newFakePlacer()
	clock := fixedNow
	engine, err := pricing.NewEngine(pricing.DefaultConfig())
	require.NoError(t, err)
	svc := NewOrderService(placer, engine, zap.NewNop(), WithClock(func() time.Time { return clock }))

	first := placeOne(t, svc)
	clock = clock.Add(time.Minute)
	second := placeOne(t, svc)

	orders, err := svc.ListOrders(context.Background(), "user:1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

func TestReorderIncreasesExistingLineAtCartPrice(t *testing.T) {
	ctx := context.Background()
	placer := newFakePlacer()
	scopes := memory.NewScopeStore()
	svc := newService(t, placer, zap.NewNop(), WithOrderIndex(scopes))

	order := &domain.Order{
		ID:     uuid.New(),
		Status: domain.OrderStatusDelivered,
		Items:  []domain.OrderItem{{ProductID: "1", ProductName: "Court Low", Price: 1_500_000, Quantity: 1}},
	}
	placer.remote[order.ID] = order
	raw, err := json.Marshal([]uuid.UUID{order.ID})
	require.NoError(t, err)
	require.NoError(t, scopes.Write(ctx, "user:1", repository.KeyOrders, raw))

	store, err := cart.Open(ctx, scopes, "user:1", nil, nil)
	require.NoError(t, err)
	_, err = store.Add(ctx, domain.Product{ID: "1", Name: "Court Low", Price: 2_000_000, Stock: 10}, 5, nil, "")
	require.NoError(t, err)

	result, err := svc.Reorder(ctx, order.ID, store)
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.True(t, result.Lines[0].Merged)
	assert.Equal(t, 6, result.Lines[0].Quantity)

	item, ok := store.Find(domain.LineKey{ProductID: "1"})
	require.True(t, ok)
	assert.Equal(t, 6, item.Quantity)
	assert.Equal(t, domain.Money(2_000_000), item.UnitPrice())
	assert.Equal(t, 10, item.StockCeiling())
}

func TestOrdersAreScopedToTheirOwner(t *testing.T) {
	ctx := context.Background()
	scopes := memory.NewScopeStore()
	svc := newService(t, newFakePlacer(), zap.NewNop(), WithOrderIndex(scopes))
	order := placeOne(t, svc)

	_, err := svc.GetOrder(ctx, "user:2", order.ID)
	var notFound *apperrors.ErrNotFound
	require.True(t, errors.As(err, &notFound))

	_, err = svc.CancelOrder(ctx, "user:2", order.ID, "not mine", domain.CancelledByUser)
	require.True(t, errors.As(err, &notFound))

	theirs, err := svc.ListOrders(ctx, "user:2")
	require.NoError(t, err)
	assert.Empty(t, theirs)

	mine, err := svc.ListOrders(ctx, "user:1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, order.ID, mine[0].ID)

	all, err := svc.ListOrders(ctx, AnyOwner)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	raw, err := scopes.Read(ctx, "user:1", repository.KeyOrders)
	require.NoError(t, err)
	var indexed []uuid.UUID
	require.NoError(t, json.Unmarshal(raw, &indexed))
	assert.Equal(t, []uuid.UUID{order.ID}, indexed)
}

func TestOrderIndexSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	scopes := memory.NewScopeStore()
	placer := newFakePlacer()
	order := placeOne(t, newService(t, placer, zap.NewNop(), WithOrderIndex(scopes)))
	placer.remote[order.ID] = order

	restarted := newService(t, placer, zap.NewNop(), WithOrderIndex(scopes))

	_, err := restarted.GetOrder(ctx, "user:2", order.ID)
	var notFound *apperrors.ErrNotFound
	require.True(t, errors.As(err, &notFound))

	mine, err := restarted.ListOrders(ctx, "user:1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, order.ID, mine[0].ID)

	_, err = restarted.GetOrder(ctx, "user:2", order.ID)
	require.True(t, errors.As(err, &notFound))
}

func TestCancelRechecksStatusAfterRemoteCall(t *testing.T) {
	ctx := context.Background()
	placer := newFakePlacer()
	svc := newService(t, placer, zap.NewNop())
	order := placeOne(t, svc)

	shipped := domain.OrderStatusShipped
	processing := domain.OrderStatusProcessing
	_, err := svc.ApplyEvent(ctx, domain.StatusEvent{OrderID: order.ID, Status: &processing})
	require.NoError(t, err)
	placer.onCancel = func() {
		_, err := svc.ApplyEvent(ctx, domain.StatusEvent{OrderID: order.ID, Status: &shipped})
		assert.NoError(t, err)
	}

	_, err = svc.CancelOrder(ctx, "user:1", order.ID, "fraud check", domain.CancelledByAdmin)
	var transition *apperrors.ErrInvalidStateTransition
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, domain.OrderStatusShipped, transition.From)

	tracked, err := svc.GetOrder(ctx, "user:1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, tracked.Status)
	assert.Nil(t, tracked.CancelReason)
}

func TestApplyEventFetchesUntrackedOrder(t *testing.T) {
	ctx := context.Background()
	placer := newFakePlacer()
	svc := newService(t, placer, zap.NewNop())

	remote := &domain.Order{ID: uuid.New(), Status: domain.OrderStatusPending, PaymentStatus: domain.PaymentStatusUnpaid}
	placer.remote[remote.ID] = remote

	paid := domain.PaymentStatusPaid
	result, err := svc.ApplyEvent(ctx, domain.StatusEvent{OrderID: remote.ID, PaymentStatus: &paid})
	require.NoError(t, err)
	assert.Equal(t, []string{"paymentStatus"}, result.Applied)

	all, err := svc.ListOrders(ctx, AnyOwner)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.PaymentStatusPaid, all[0].PaymentStatus)

	_, err = svc.ApplyEvent(ctx, domain.StatusEvent{OrderID: uuid.New(), PaymentStatus: &paid})
	var notFound *apperrors.ErrNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestWatchWarnsOnUnknownOrders(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	svc := newService(t, newFakePlacer(), zap.New(core))

	src := events.NewChannelSource(1)
	processing := domain.OrderStatusProcessing
	require.NoError(t, src.Publish(context.Background(), domain.StatusEvent{OrderID: uuid.New(), Status: &processing}))
	src.Close()

	svc.Watch(context.Background(), src)
	assert.Equal(t, 1, logs.FilterMessage("Failed to apply status event").Len())
}
