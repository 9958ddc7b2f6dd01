// Package cart holds the identity-keyed, stock-clamped shopping cart of one scope.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/domain"
	"github.com/kicksvault/storefront/internal/metrics"
	"github.com/kicksvault/storefront/internal/pricing"
	"github.com/kicksvault/storefront/internal/repository"
)

// AddResult reports what Add did with a request
type AddResult struct {
	Key      domain.LineKey      `json:"key"`
	Added    bool                `json:"added"`
	Merged   bool                `json:"merged"`
	Quantity int                 `json:"quantity"`
	Clamp    pricing.ClampResult `json:"clamp"`
	// Missing lists variant groups without a selection; nothing was added.
	Missing []string `json:"missing,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Incomplete reports whether the add was blocked by an incomplete selection
func (r AddResult) Incomplete() bool {
	return len(r.Missing) > 0
}

// UpdateResult reports what UpdateQuantity did
type UpdateResult struct {
	Found    bool                `json:"found"`
	Removed  bool                `json:"removed"`
	Quantity int                 `json:"quantity"`
	Clamp    pricing.ClampResult `json:"clamp"`
	Message  string              `json:"message,omitempty"`
}

// Store is the cart of a single scope. Every mutating call writes the cart
// and voucher selection through to the ScopeStore before returning. A Store
// is owned by one session and is not safe for concurrent use.
type Store struct {
	persist repository.ScopeStore
	logger  *zap.Logger
	metrics *metrics.Metrics

	scope   string
	items   []domain.CartItem
	voucher *domain.Voucher
}

// Open loads the persisted cart and voucher selection of scope
func Open(ctx context.Context, persist repository.ScopeStore, scope string, logger *zap.Logger, m *metrics.Metrics) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		persist: persist,
		logger:  logger,
		metrics: m,
	}
	if err := s.SwitchScope(ctx, scope); err != nil {
		return nil, err
	}
	return s, nil
}

// Scope returns the active persistence partition
func (s *Store) Scope() string {
	return s.scope
}

// SwitchScope replaces the in-memory cart with scope's persisted snapshot.
// State from the previous scope is discarded, never merged. On error the
// store stays on its previous scope.
func (s *Store) SwitchScope(ctx context.Context, scope string) error {
	if scope == "" {
		scope = repository.GuestScope
	}

	var items []domain.CartItem
	if err := s.load(ctx, scope, repository.KeyCart, &items); err != nil {
		return err
	}
	var voucher *domain.Voucher
	if err := s.load(ctx, scope, repository.KeyVoucher, &voucher); err != nil {
		return err
	}

	s.scope = scope
	s.items = items
	s.voucher = voucher
	return nil
}

// Items returns a copy of the cart lines in insertion order
func (s *Store) Items() []domain.CartItem {
	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// Voucher returns the selected voucher, or nil
func (s *Store) Voucher() *domain.Voucher {
	if s.voucher == nil {
		return nil
	}
	v := *s.voucher
	return &v
}

// Find returns the line with the given identity
func (s *Store) Find(key domain.LineKey) (domain.CartItem, bool) {
	if i := s.indexOf(key); i >= 0 {
		return s.items[i], true
	}
	return domain.CartItem{}, false
}

// AddSelection resolves raw variant selections and adds the result. When a
// variant group is left unselected nothing is added and the result lists the
// missing groups.
func (s *Store) AddSelection(ctx context.Context, product domain.Product, quantity int, selections map[string]string, color string) (AddResult, error) {
	res := pricing.Resolve(product, selections, color)
	if !res.Complete {
		return AddResult{
			Key:     domain.LineKey{ProductID: product.ID.String(), Color: color},
			Missing: res.Missing,
			Message: fmt.Sprintf("please select: %v", res.Missing),
		}, nil
	}
	return s.Add(ctx, product, quantity, res.SelectedVariant(), color)
}

// Add puts quantity units of a product line into the cart. An existing line
// with the same identity is merged and the combined quantity is clamped to
// the stock ceiling; a new line is clamped with a floor of one unit.
func (s *Store) Add(ctx context.Context, product domain.Product, quantity int, variant *domain.SelectedVariant, color string) (AddResult, error) {
	if quantity < 1 {
		quantity = 1
	}
	item := domain.CartItem{
		Product:         product,
		Quantity:        quantity,
		SelectedVariant: variant,
		SelectedColor:   color,
	}
	key := item.Key()
	ceiling := item.StockCeiling()
	result := AddResult{Key: key}

	prev := s.Items()
	if i := s.indexOf(key); i >= 0 {
		current := s.items[i].Quantity
		result.Merged = true
		result.Clamp = pricing.Clamp(current, quantity, ceiling)
		if result.Clamp.FinalQty >= 1 {
			// Refresh the snapshot so the stored ceiling matches the clamp.
			item.Quantity = result.Clamp.FinalQty
			s.items[i] = item
		}
		result.Quantity = s.items[i].Quantity
	} else {
		if ceiling < 1 {
			result.Clamp = pricing.Clamp(0, quantity, 0)
			result.Message = "this item is out of stock"
			s.recordClamp(key, result.Clamp)
			return result, nil
		}
		result.Clamp = pricing.Clamp(0, quantity, ceiling)
		item.Quantity = result.Clamp.FinalQty
		s.items = append(s.items, item)
		result.Added = true
		result.Quantity = item.Quantity
	}

	if result.Clamp.WasClamped {
		s.recordClamp(key, result.Clamp)
		result.Message = result.Clamp.Message()
	}

	s.metrics.CartMutation("add")
	if err := s.commit(ctx, prev); err != nil {
		return AddResult{}, err
	}
	return result, nil
}

// Increase adds delta units to an existing line, clamped against that line's
// own stock ceiling. The stored snapshot is kept as is. A missing line
// yields a result with neither Added nor Merged set.
func (s *Store) Increase(ctx context.Context, key domain.LineKey, delta int) (AddResult, error) {
	result := AddResult{Key: key}
	i := s.indexOf(key)
	if i < 0 {
		return result, nil
	}
	if delta < 1 {
		delta = 1
	}

	prev := s.Items()
	result.Merged = true
	result.Clamp = pricing.Clamp(s.items[i].Quantity, delta, s.items[i].StockCeiling())
	if result.Clamp.FinalQty >= 1 {
		s.items[i].Quantity = result.Clamp.FinalQty
	}
	result.Quantity = s.items[i].Quantity
	if result.Clamp.WasClamped {
		s.recordClamp(key, result.Clamp)
		result.Message = result.Clamp.Message()
	}

	s.metrics.CartMutation("increase")
	if err := s.commit(ctx, prev); err != nil {
		return AddResult{}, err
	}
	return result, nil
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line. The
// quantity is re-clamped against the line's stock ceiling.
func (s *Store) UpdateQuantity(ctx context.Context, key domain.LineKey, quantity int) (UpdateResult, error) {
	if quantity <= 0 {
		removed, err := s.RemoveLine(ctx, key)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{Found: removed, Removed: removed}, nil
	}

	i := s.indexOf(key)
	if i < 0 {
		return UpdateResult{}, nil
	}

	prev := s.Items()
	result := UpdateResult{Found: true}
	result.Clamp = pricing.Clamp(0, quantity, s.items[i].StockCeiling())
	if result.Clamp.FinalQty >= 1 {
		s.items[i].Quantity = result.Clamp.FinalQty
	}
	result.Quantity = s.items[i].Quantity
	if result.Clamp.WasClamped {
		s.recordClamp(key, result.Clamp)
		result.Message = fmt.Sprintf("only %d unit(s) in stock", result.Quantity)
	}

	s.metrics.CartMutation("update")
	if err := s.commit(ctx, prev); err != nil {
		return UpdateResult{}, err
	}
	return result, nil
}

// Remove deletes every line of a product regardless of variant or color and
// returns how many lines were removed
func (s *Store) Remove(ctx context.Context, productID string) (int, error) {
	prev := s.Items()
	kept := s.items[:0:0]
	for _, item := range s.items {
		if item.Product.ID.String() != productID {
			kept = append(kept, item)
		}
	}
	removed := len(s.items) - len(kept)
	s.items = kept

	s.metrics.CartMutation("remove")
	if err := s.commit(ctx, prev); err != nil {
		return 0, err
	}
	return removed, nil
}

// RemoveLine deletes the single line with the exact identity
func (s *Store) RemoveLine(ctx context.Context, key domain.LineKey) (bool, error) {
	i := s.indexOf(key)
	if i < 0 {
		return false, nil
	}

	prev := s.Items()
	s.items = append(s.items[:i:i], s.items[i+1:]...)

	s.metrics.CartMutation("remove_line")
	if err := s.commit(ctx, prev); err != nil {
		return false, err
	}
	return true, nil
}

// Clear empties the cart and drops the voucher selection together
func (s *Store) Clear(ctx context.Context) error {
	prevItems, prevVoucher := s.items, s.voucher
	s.items = nil
	s.voucher = nil

	if err := s.persist.Clear(ctx, s.scope, repository.KeyCart, repository.KeyVoucher); err != nil {
		s.items, s.voucher = prevItems, prevVoucher
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	s.metrics.CartMutation("clear")
	return nil
}

// SelectVoucher stores the full voucher as the active selection; nil deselects
func (s *Store) SelectVoucher(ctx context.Context, voucher *domain.Voucher) error {
	prev := s.voucher
	if voucher != nil {
		v := *voucher
		s.voucher = &v
	} else {
		s.voucher = nil
	}

	var err error
	if s.voucher == nil {
		err = s.persist.Clear(ctx, s.scope, repository.KeyVoucher)
	} else {
		err = s.save(ctx, repository.KeyVoucher, s.voucher)
	}
	if err != nil {
		s.voucher = prev
		return err
	}
	s.metrics.CartMutation("select_voucher")
	return nil
}

// TotalItems sums quantities across lines
func (s *Store) TotalItems() int {
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums unit price times quantity across lines
func (s *Store) TotalPrice() domain.Money {
	return pricing.Subtotal(s.items)
}

// ShippingInfo returns the saved checkout pre-fill for the scope, or nil
func (s *Store) ShippingInfo(ctx context.Context) (*domain.ShippingInfo, error) {
	var info *domain.ShippingInfo
	if err := s.load(ctx, s.scope, repository.KeyShipping, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// SaveShippingInfo stores the checkout pre-fill for the scope
func (s *Store) SaveShippingInfo(ctx context.Context, info domain.ShippingInfo) error {
	return s.save(ctx, repository.KeyShipping, info)
}

// Purge removes the session state persisted for the scope on logout: cart,
// voucher selection and shipping info. The scope's order index is kept.
func (s *Store) Purge(ctx context.Context) error {
	if err := s.persist.Clear(ctx, s.scope, repository.KeyCart, repository.KeyVoucher, repository.KeyShipping); err != nil {
		return fmt.Errorf("failed to purge scope: %w", err)
	}
	s.items = nil
	s.voucher = nil
	return nil
}

func (s *Store) indexOf(key domain.LineKey) int {
	for i, item := range s.items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}

func (s *Store) recordClamp(key domain.LineKey, clamp pricing.ClampResult) {
	s.metrics.StockClamp(string(clamp.Outcome))
	s.logger.Info("Cart quantity clamped to stock",
		zap.String("scope", s.scope),
		zap.String("product_id", key.ProductID),
		zap.String("variant", key.Variant),
		zap.String("color", key.Color),
		zap.Int("final_qty", clamp.FinalQty),
		zap.String("outcome", string(clamp.Outcome)),
	)
}

// commit writes the cart through, restoring the previous lines on failure
func (s *Store) commit(ctx context.Context, prev []domain.CartItem) error {
	if err := s.save(ctx, repository.KeyCart, s.items); err != nil {
		s.items = prev
		return err
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.persist.Write(ctx, s.scope, key, data); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, scope, key string, dst interface{}) error {
	data, err := s.persist.Read(ctx, scope, key)
	if errors.Is(err, repository.ErrNoValue) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		// An unreadable snapshot is dropped rather than blocking the session.
		s.logger.Warn("Discarding corrupt persisted state",
			zap.String("scope", scope),
			zap.String("key", key),
			zap.Error(err),
		)
		_ = json.Unmarshal([]byte("null"), dst)
	}
	return nil
}
