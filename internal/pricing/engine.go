package pricing

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kicksvault/storefront/internal/domain"
)

// ShippingTier charges Fee when the subtotal is at least MinSubtotal
type ShippingTier struct {
	MinSubtotal domain.Money
	Fee         domain.Money
}

// Config holds the rates the engine applies
type Config struct {
	VATRate decimal.Decimal
	// Tiers are evaluated from the highest MinSubtotal down; the first tier
	// whose lower bound the subtotal reaches wins.
	Tiers       []ShippingTier
	StandardFee domain.Money
}

// DefaultConfig is the storefront's published pricing: 1% VAT, free shipping
// from 1,000,000, 30,000 from 500,000, 50,000 below that.
func DefaultConfig() Config {
	return Config{
		VATRate: decimal.NewFromFloat(0.01),
		Tiers: []ShippingTier{
			{MinSubtotal: 1_000_000, Fee: 0},
			{MinSubtotal: 500_000, Fee: 30_000},
		},
		StandardFee: 50_000,
	}
}

// Breakdown is the full price composition of a cart
type Breakdown struct {
	Subtotal       domain.Money `json:"subtotal"`
	VATAmount      domain.Money `json:"vatAmount"`
	ShippingFee    domain.Money `json:"shippingFee"`
	DiscountAmount domain.Money `json:"discountAmount"`
	Total          domain.Money `json:"total"`
	VoucherCode    string       `json:"voucherCode,omitempty"`
	// Voucher is the evaluation of the supplied voucher, nil when none was given.
	Voucher *Eligibility `json:"voucher,omitempty"`
}

// Engine is the single place order totals are computed
type Engine struct {
	cfg Config
}

// NewEngine creates a pricing engine, validating the configuration
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.VATRate.IsNegative() {
		return nil, fmt.Errorf("vat rate must not be negative")
	}
	if cfg.StandardFee < 0 {
		return nil, fmt.Errorf("standard shipping fee must not be negative")
	}
	tiers := make([]ShippingTier, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinSubtotal > tiers[j].MinSubtotal
	})
	for _, t := range tiers {
		if t.Fee < 0 {
			return nil, fmt.Errorf("shipping tier fee must not be negative")
		}
	}
	cfg.Tiers = tiers
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Subtotal sums unit price times quantity over the items
func Subtotal(items []domain.CartItem) domain.Money {
	var subtotal domain.Money
	for _, item := range items {
		subtotal += item.UnitPrice() * domain.Money(item.Quantity)
	}
	return subtotal
}

// VAT rounds subtotal * rate to whole currency units
func (e *Engine) VAT(subtotal domain.Money) domain.Money {
	return decimal.NewFromInt(subtotal).Mul(e.cfg.VATRate).Round(0).IntPart()
}

// ShippingFee picks the tier for a subtotal; tier bounds are inclusive
func (e *Engine) ShippingFee(subtotal domain.Money) domain.Money {
	for _, t := range e.cfg.Tiers {
		if subtotal >= t.MinSubtotal {
			return t.Fee
		}
	}
	return e.cfg.StandardFee
}

// Compute prices the items with an optional voucher evaluated at now.
// The discount is capped so the total never drops below zero.
func (e *Engine) Compute(items []domain.CartItem, voucher *domain.Voucher, now time.Time) Breakdown {
	b := Breakdown{Subtotal: Subtotal(items)}
	b.VATAmount = e.VAT(b.Subtotal)
	b.ShippingFee = e.ShippingFee(b.Subtotal)

	gross := b.Subtotal + b.VATAmount + b.ShippingFee
	if voucher != nil {
		eligibility := Validate(*voucher, b.Subtotal, now)
		b.Voucher = &eligibility
		if eligibility.Valid {
			b.VoucherCode = voucher.Code
			b.DiscountAmount = ComputeDiscount(*voucher, b.Subtotal)
		}
	}
	if b.DiscountAmount > gross {
		b.DiscountAmount = gross
	}
	if b.DiscountAmount < 0 {
		b.DiscountAmount = 0
	}
	b.Total = gross - b.DiscountAmount
	return b
}
