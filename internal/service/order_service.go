package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/cart"
	"github.com/kicksvault/storefront/internal/domain"
	"github.com/kicksvault/storefront/internal/events"
	"github.com/kicksvault/storefront/internal/metrics"
	"github.com/kicksvault/storefront/internal/orderapi"
	"github.com/kicksvault/storefront/internal/pricing"
	"github.com/kicksvault/storefront/internal/repository"
	apperrors "github.com/kicksvault/storefront/pkg/errors"
)

// OrderPlacer is the order-placement collaborator
type OrderPlacer interface {
	CreateOrder(ctx context.Context, req orderapi.CreateOrderRequest) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

// Catalog looks up live product state
type Catalog interface {
	GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error)
}

// AnyOwner is the scope used by admin callers; it sees every tracked order
const AnyOwner = "*"

// Option configures an OrderService
type Option func(*OrderService)

// WithCatalog makes Reorder clamp quantities against live stock
func WithCatalog(c Catalog) Option {
	return func(s *OrderService) { s.catalog = c }
}

// WithOrderIndex persists the ids of the orders each scope placed, so order
// ownership survives a restart
func WithOrderIndex(scopes repository.ScopeStore) Option {
	return func(s *OrderService) { s.index = scopes }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

// WithMetrics records placement and reconciliation counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *OrderService) { s.metrics = m }
}

// OrderService places orders from a cart and tracks them afterwards:
// cancellation, reconciliation of pushed status events and reorder.
type OrderService struct {
	placer  OrderPlacer
	engine  *pricing.Engine
	catalog Catalog
	index   repository.ScopeStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
	owners map[uuid.UUID]string

	indexMu sync.Mutex
}

// NewOrderService creates a new order service
func NewOrderService(placer OrderPlacer, engine *pricing.Engine, logger *zap.Logger, opts ...Option) *OrderService {
	s := &OrderService{
		placer: placer,
		engine: engine,
		logger: logger,
		now:    time.Now,
		orders: make(map[uuid.UUID]*domain.Order),
		owners: make(map[uuid.UUID]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote prices the cart's current contents
func (s *OrderService) Quote(store *cart.Store) pricing.Breakdown {
	return s.engine.Compute(store.Items(), store.Voucher(), s.now())
}

// PlaceOrder snapshots the cart into an order and submits it. On success the
// cart and voucher selection are cleared and the shipping info is saved for
// the next checkout. On failure the cart is left untouched.
func (s *OrderService) PlaceOrder(ctx context.Context, store *cart.Store, req CheckoutRequest) (*domain.Order, pricing.Breakdown, error) {
	items := store.Items()
	if len(items) == 0 {
		return nil, pricing.Breakdown{}, &apperrors.ErrValidation{Field: "items", Message: "cart is empty"}
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return nil, pricing.Breakdown{}, &apperrors.ErrValidation{Field: "paymentMethod", Message: "payment method is required"}
	}

	breakdown := s.engine.Compute(items, store.Voucher(), s.now())

	createReq := orderapi.CreateOrderRequest{
		RequestID:      uuid.New(),
		Items:          snapshotItems(items),
		CustomerInfo:   req.CustomerInfo,
		PaymentMethod:  req.PaymentMethod,
		Subtotal:       breakdown.Subtotal,
		VATAmount:      breakdown.VATAmount,
		TotalAmount:    breakdown.Total,
		ShippingFee:    breakdown.ShippingFee,
		DiscountAmount: breakdown.DiscountAmount,
		Status:         domain.OrderStatusPending,
		IsPaid:         false,
		PaymentStatus:  domain.PaymentStatusUnpaid,
	}
	if breakdown.VoucherCode != "" {
		code := breakdown.VoucherCode
		createReq.VoucherCode = &code
	}

	placed, err := s.placer.CreateOrder(ctx, createReq)
	if err != nil {
		s.metrics.OrderPlaced("failed")
		s.logger.Error("Failed to place order",
			zap.String("scope", store.Scope()),
			zap.String("request_id", createReq.RequestID.String()),
			zap.Error(err),
		)
		var placementErr *apperrors.ErrOrderPlacement
		if !errors.As(err, &placementErr) {
			err = &apperrors.ErrOrderPlacement{Err: err}
		}
		return nil, breakdown, err
	}

	order := s.track(s.orderFromRequest(createReq, placed), store.Scope())
	s.metrics.OrderPlaced("success")
	if err := s.remember(ctx, store.Scope(), order.ID); err != nil {
		s.logger.Error("Order placed but not indexed for its scope",
			zap.String("order_id", order.ID.String()),
			zap.String("scope", store.Scope()),
			zap.Error(err),
		)
	}

	if err := store.Clear(ctx); err != nil {
		s.logger.Error("Order placed but cart could not be cleared",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
	info := domain.ShippingInfo{
		FullName: req.CustomerInfo.FullName,
		Phone:    req.CustomerInfo.Phone,
		Email:    req.CustomerInfo.Email,
		Address:  req.CustomerInfo.Address,
		City:     req.CustomerInfo.City,
		Ward:     req.CustomerInfo.Ward,
	}
	if err := store.SaveShippingInfo(ctx, info); err != nil {
		s.logger.Warn("Failed to save shipping info", zap.Error(err))
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.Int64("total", order.TotalAmount),
		zap.Int("items", len(order.Items)),
	)

	return s.snapshot(order), breakdown, nil
}

// CancelOrder cancels an order owned by scope. Buyers may cancel only
// pending orders; admins may also cancel processing ones. A reason is
// required.
func (s *OrderService) CancelOrder(ctx context.Context, scope string, orderID uuid.UUID, reason string, actor domain.CancelActor) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &apperrors.ErrValidation{Field: "cancelReason", Message: "a cancellation reason is required"}
	}

	current, err := s.GetOrder(ctx, scope, orderID)
	if err != nil {
		return nil, err
	}
	if !CanCancel(current.Status, actor) {
		return nil, &apperrors.ErrInvalidStateTransition{From: current.Status, To: domain.OrderStatusCancelled}
	}

	if err := s.placer.CancelOrder(ctx, orderID, reason); err != nil {
		s.logger.Error("Failed to cancel order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tracked := s.orders[orderID]

	// A status event may have landed while the cancel call was in flight.
	if tracked.Status == domain.OrderStatusCancelled {
		return (*orderRecord)(tracked).clone(), nil
	}
	if !CanCancel(tracked.Status, actor) {
		s.logger.Warn("Order moved on while being cancelled",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(tracked.Status)),
		)
		return nil, &apperrors.ErrInvalidStateTransition{From: tracked.Status, To: domain.OrderStatusCancelled}
	}

	now := s.now()
	tracked.Status = domain.OrderStatusCancelled
	tracked.CancelReason = &reason
	tracked.CancelledBy = &actor
	tracked.CancelledAt = &now
	tracked.UpdatedAt = now

	s.logger.Info("Order cancelled",
		zap.String("order_id", orderID.String()),
		zap.String("by", string(actor)),
	)

	return (*orderRecord)(tracked).clone(), nil
}

// CanCancel reports whether actor may cancel an order in status
func CanCancel(status domain.OrderStatus, actor domain.CancelActor) bool {
	if actor == domain.CancelledByUser {
		return status == domain.OrderStatusPending
	}
	return status.CanTransitionTo(domain.OrderStatusCancelled)
}

// Reconcile merges a pushed event into order field by field. Fields absent
// from the event are kept. A terminal local status is never replaced; the
// disagreement is logged and returned as a conflict.
func (s *OrderService) Reconcile(order *domain.Order, event domain.StatusEvent) ReconcileResult {
	var result ReconcileResult
	at := event.OccurredAt
	if at.IsZero() {
		at = s.now()
	}

	if event.Status != nil && *event.Status != order.Status {
		pushed := *event.Status
		switch {
		case !pushed.IsValid():
			s.logger.Warn("Ignoring pushed order status",
				zap.String("order_id", order.ID.String()),
				zap.String("status", string(pushed)),
			)
		case order.Status.IsTerminal():
			result.Conflict = &apperrors.ErrReconciliationConflict{
				OrderID: order.ID.String(),
				Local:   order.Status,
				Pushed:  pushed,
			}
			s.metrics.ReconciliationConflict()
			s.logger.Warn("Reconciliation conflict",
				zap.String("order_id", order.ID.String()),
				zap.String("local_status", string(order.Status)),
				zap.String("pushed_status", string(pushed)),
			)
		default:
			order.Status = pushed
			if pushed == domain.OrderStatusCancelled && order.CancelledAt == nil {
				order.CancelledAt = &at
			}
			result.Applied = append(result.Applied, "status")
		}
	}

	if event.PaymentStatus != nil && *event.PaymentStatus != order.PaymentStatus {
		if event.PaymentStatus.IsValid() {
			order.PaymentStatus = *event.PaymentStatus
			result.Applied = append(result.Applied, "paymentStatus")
		} else {
			s.logger.Warn("Ignoring pushed payment status",
				zap.String("order_id", order.ID.String()),
				zap.String("payment_status", string(*event.PaymentStatus)),
			)
		}
	}

	if len(result.Applied) > 0 {
		order.UpdatedAt = at
	}
	return result
}

// ApplyEvent reconciles an event against the order it names. An order that
// is not tracked yet is fetched from the order service first.
func (s *OrderService) ApplyEvent(ctx context.Context, event domain.StatusEvent) (ReconcileResult, error) {
	s.mu.Lock()
	if order, ok := s.orders[event.OrderID]; ok {
		defer s.mu.Unlock()
		return s.Reconcile(order, event), nil
	}
	s.mu.Unlock()

	fetched, err := s.placer.GetOrder(ctx, event.OrderID)
	if err != nil {
		return ReconcileResult{}, err
	}
	order := s.track((*orderRecord)(fetched), "")

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Reconcile(order, event), nil
}

// Watch applies events from src until ctx is done or the source closes
func (s *OrderService) Watch(ctx context.Context, src events.Source) {
	ch := src.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := s.ApplyEvent(ctx, event); err != nil {
				s.logger.Warn("Failed to apply status event",
					zap.String("order_id", event.OrderID.String()),
					zap.Error(err),
				)
			}
		}
	}
}

// Reorder puts the lines of a delivered order of the store's scope back into
// the cart at their historical price. Without a catalog the historical
// quantity is the stock ceiling; with one, live stock is used and unavailable
// lines are skipped. A line already in the cart is increased against its own
// ceiling and keeps its current price.
func (s *OrderService) Reorder(ctx context.Context, orderID uuid.UUID, store *cart.Store) (ReorderResult, error) {
	order, err := s.GetOrder(ctx, store.Scope(), orderID)
	if err != nil {
		return ReorderResult{}, err
	}
	if order.Status != domain.OrderStatusDelivered {
		return ReorderResult{}, &apperrors.ErrValidation{Field: "status", Message: "only delivered orders can be reordered"}
	}

	var result ReorderResult
	for _, item := range order.Items {
		key := domain.LineKey{ProductID: item.ProductID.String(), Variant: item.VariantName, Color: item.Color}
		if _, ok := store.Find(key); ok {
			line, err := store.Increase(ctx, key, item.Quantity)
			if err != nil {
				return result, err
			}
			result.Lines = append(result.Lines, line)
			continue
		}

		ceiling, ok := s.reorderCeiling(ctx, item)
		if !ok {
			result.Skipped = append(result.Skipped, item)
			continue
		}

		product := domain.Product{
			ID:    item.ProductID,
			Name:  item.ProductName,
			Brand: item.ProductBrand,
			Price: item.Price,
			Stock: ceiling,
			Image: item.ProductImage,
		}
		var variant *domain.SelectedVariant
		if item.VariantName != "" {
			variant = &domain.SelectedVariant{
				Name:  item.VariantName,
				Price: item.Price,
				Stock: ceiling,
				SKU:   item.SKU,
				Image: item.ProductImage,
			}
		}

		line, err := store.Add(ctx, product, item.Quantity, variant, item.Color)
		if err != nil {
			return result, err
		}
		if !line.Added && !line.Merged {
			result.Skipped = append(result.Skipped, item)
			continue
		}
		result.Lines = append(result.Lines, line)
	}
	return result, nil
}

func (s *OrderService) reorderCeiling(ctx context.Context, item domain.OrderItem) (int, bool) {
	if s.catalog == nil {
		return item.Quantity, true
	}
	product, err := s.catalog.GetProduct(ctx, item.ProductID)
	if err != nil {
		s.logger.Info("Reorder line unavailable",
			zap.String("product_id", item.ProductID.String()),
			zap.Error(err),
		)
		return 0, false
	}
	if item.VariantName == "" || len(product.Variants) == 0 {
		return product.Stock, product.Stock > 0
	}
	opt, ok := product.Variants[0].Option(item.VariantName)
	if !ok {
		return 0, false
	}
	return opt.Stock, opt.Stock > 0
}

// GetOrder returns an order owned by scope, fetching it from the order
// service when it is not tracked yet. Orders of other scopes are not found.
func (s *OrderService) GetOrder(ctx context.Context, scope string, orderID uuid.UUID) (*domain.Order, error) {
	owned, err := s.owns(ctx, scope, orderID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, &apperrors.ErrNotFound{Resource: "order", ID: orderID.String()}
	}
	return s.load(ctx, scope, orderID)
}

// ListOrders returns the orders of scope, newest first. AnyOwner lists every
// tracked order.
func (s *OrderService) ListOrders(ctx context.Context, scope string) ([]*domain.Order, error) {
	if scope == AnyOwner {
		s.mu.Lock()
		out := make([]*domain.Order, 0, len(s.orders))
		for _, order := range s.orders {
			out = append(out, (*orderRecord)(order).clone())
		}
		s.mu.Unlock()
		sortNewestFirst(out)
		return out, nil
	}

	indexed, err := s.indexed(ctx, scope)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(indexed))
	out := make([]*domain.Order, 0, len(indexed))
	for _, id := range indexed {
		seen[id] = true
		order, err := s.load(ctx, scope, id)
		if err != nil {
			s.logger.Warn("Skipping unavailable order",
				zap.String("order_id", id.String()),
				zap.String("scope", scope),
				zap.Error(err),
			)
			continue
		}
		out = append(out, order)
	}

	s.mu.Lock()
	for id, owner := range s.owners {
		if owner != scope || seen[id] {
			continue
		}
		if order, ok := s.orders[id]; ok {
			out = append(out, (*orderRecord)(order).clone())
		}
	}
	s.mu.Unlock()

	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

// load returns the tracked copy of an order, fetching and tracking it under
// scope when absent. Ownership is checked by the caller.
func (s *OrderService) load(ctx context.Context, scope string, orderID uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	if order, ok := s.orders[orderID]; ok {
		defer s.mu.Unlock()
		return (*orderRecord)(order).clone(), nil
	}
	s.mu.Unlock()

	fetched, err := s.placer.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	owner := scope
	if owner == AnyOwner {
		owner = ""
	}
	return s.snapshot(s.track((*orderRecord)(fetched), owner)), nil
}

// snapshot copies a tracked order under the lock
func (s *OrderService) snapshot(order *domain.Order) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*orderRecord)(order).clone()
}

// owns reports whether scope may see the order. An order with no known owner
// is looked up in the scope's persisted index.
func (s *OrderService) owns(ctx context.Context, scope string, orderID uuid.UUID) (bool, error) {
	if scope == AnyOwner {
		return true, nil
	}
	s.mu.Lock()
	owner := s.owners[orderID]
	s.mu.Unlock()
	if owner != "" {
		return owner == scope, nil
	}

	indexed, err := s.indexed(ctx, scope)
	if err != nil {
		return false, err
	}
	for _, id := range indexed {
		if id == orderID {
			s.mu.Lock()
			if s.owners[orderID] == "" {
				s.owners[orderID] = scope
			}
			s.mu.Unlock()
			return true, nil
		}
	}
	return false, nil
}

// track stores order unless it is already tracked and returns the tracked
// record. An empty owner leaves ownership unknown.
func (s *OrderService) track(order *orderRecord, owner string) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracked, ok := s.orders[order.ID]
	if !ok {
		tracked = (*domain.Order)(order)
		s.orders[order.ID] = tracked
	}
	if owner != "" && s.owners[order.ID] == "" {
		s.owners[order.ID] = owner
	}
	return tracked
}

func (s *OrderService) indexed(ctx context.Context, scope string) ([]uuid.UUID, error) {
	if s.index == nil {
		return nil, nil
	}
	raw, err := s.index.Read(ctx, scope, repository.KeyOrders)
	if errors.Is(err, repository.ErrNoValue) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// remember appends orderID to the scope's persisted order index
func (s *OrderService) remember(ctx context.Context, scope string, orderID uuid.UUID) error {
	if s.index == nil {
		return nil
	}
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	ids, err := s.indexed(ctx, scope)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == orderID {
			return nil
		}
	}
	raw, err := json.Marshal(append(ids, orderID))
	if err != nil {
		return err
	}
	return s.index.Write(ctx, scope, repository.KeyOrders, raw)
}

// orderFromRequest builds the local record from what was sent, taking the
// id, statuses and timestamps from the service's response when present
func (s *OrderService) orderFromRequest(req orderapi.CreateOrderRequest, placed *domain.Order) *orderRecord {
	now := s.now()
	order := &domain.Order{
		ID:             req.RequestID,
		RequestID:      req.RequestID,
		Items:          req.Items,
		CustomerInfo:   req.CustomerInfo,
		PaymentMethod:  req.PaymentMethod,
		Subtotal:       req.Subtotal,
		VATAmount:      req.VATAmount,
		ShippingFee:    req.ShippingFee,
		DiscountAmount: req.DiscountAmount,
		VoucherCode:    req.VoucherCode,
		TotalAmount:    req.TotalAmount,
		Status:         req.Status,
		PaymentStatus:  req.PaymentStatus,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if placed != nil {
		if placed.ID != uuid.Nil {
			order.ID = placed.ID
		}
		if placed.Status.IsValid() {
			order.Status = placed.Status
		}
		if placed.PaymentStatus.IsValid() {
			order.PaymentStatus = placed.PaymentStatus
		}
		if !placed.CreatedAt.IsZero() {
			order.CreatedAt = placed.CreatedAt
		}
		if !placed.UpdatedAt.IsZero() {
			order.UpdatedAt = placed.UpdatedAt
		}
	}
	return (*orderRecord)(order)
}

func snapshotItems(items []domain.CartItem) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		line := domain.OrderItem{
			ProductID:    item.Product.ID,
			ProductName:  item.Product.Name,
			ProductBrand: item.Product.Brand,
			ProductImage: item.Image(),
			Price:        item.UnitPrice(),
			Quantity:     item.Quantity,
			Color:        item.SelectedColor,
		}
		if item.SelectedVariant != nil {
			line.VariantName = item.SelectedVariant.Name
			line.SKU = item.SelectedVariant.SKU
		}
		out = append(out, line)
	}
	return out
}

// orderRecord is a tracked order; clone hands out copies so callers can never
// mutate the frozen item snapshot
type orderRecord domain.Order

func (o *orderRecord) clone() *domain.Order {
	c := domain.Order(*o)
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}
