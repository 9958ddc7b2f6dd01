package pricing

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kicksvault/storefront/internal/domain"
)

// IneligibleReason enumerates why a voucher cannot be applied
type IneligibleReason string

const (
	ReasonInactive       IneligibleReason = "inactive"
	ReasonUsageExhausted IneligibleReason = "usage_exhausted"
	ReasonExpired        IneligibleReason = "expired"
	ReasonBelowMinimum   IneligibleReason = "below_minimum"
)

// Eligibility is the outcome of validating a voucher against a subtotal
type Eligibility struct {
	Valid  bool             `json:"valid"`
	Reason IneligibleReason `json:"reason,omitempty"`
	// Shortfall is set for ReasonBelowMinimum: minOrderValue - subtotal.
	Shortfall domain.Money `json:"shortfall,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// Validate checks a voucher in a fixed order; the first failing check is reported
func Validate(v domain.Voucher, subtotal domain.Money, now time.Time) Eligibility {
	switch {
	case !v.IsActive:
		return Eligibility{
			Reason:  ReasonInactive,
			Message: fmt.Sprintf("voucher %s is not active", v.Code),
		}
	case v.UsedCount >= v.UsageLimit:
		return Eligibility{
			Reason:  ReasonUsageExhausted,
			Message: fmt.Sprintf("voucher %s has reached its usage limit", v.Code),
		}
	case v.ExpiryDate.Before(now):
		return Eligibility{
			Reason:  ReasonExpired,
			Message: fmt.Sprintf("voucher %s expired on %s", v.Code, v.ExpiryDate.Format("2006-01-02")),
		}
	case subtotal < v.MinOrderValue:
		shortfall := v.MinOrderValue - subtotal
		return Eligibility{
			Reason:    ReasonBelowMinimum,
			Shortfall: shortfall,
			Message:   fmt.Sprintf("add %d more to use voucher %s", shortfall, v.Code),
		}
	}
	return Eligibility{Valid: true}
}

// ComputeDiscount returns the voucher's discount for a subtotal. Fixed
// discounts are not capped here; the engine caps against the grand total.
func ComputeDiscount(v domain.Voucher, subtotal domain.Money) domain.Money {
	switch v.DiscountType {
	case domain.DiscountFixed:
		return v.DiscountValue
	case domain.DiscountPercentage:
		amount := decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(v.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		if v.MaxDiscount != nil && amount > *v.MaxDiscount {
			amount = *v.MaxDiscount
		}
		return amount
	default:
		return 0
	}
}

// RankedVoucher pairs a voucher with its evaluation for a subtotal
type RankedVoucher struct {
	Voucher     domain.Voucher `json:"voucher"`
	Eligibility Eligibility    `json:"eligibility"`
	Discount    domain.Money   `json:"discount"`
}

// RankVouchers orders vouchers for selection: valid ones first by descending
// discount, then invalid ones by ascending minimum order value. Ties keep
// code order so the ranking is deterministic.
func RankVouchers(vouchers []domain.Voucher, subtotal domain.Money, now time.Time) []RankedVoucher {
	ranked := make([]RankedVoucher, 0, len(vouchers))
	for _, v := range vouchers {
		r := RankedVoucher{Voucher: v, Eligibility: Validate(v, subtotal, now)}
		if r.Eligibility.Valid {
			r.Discount = ComputeDiscount(v, subtotal)
		}
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Eligibility.Valid != b.Eligibility.Valid {
			return a.Eligibility.Valid
		}
		if a.Eligibility.Valid {
			if a.Discount != b.Discount {
				return a.Discount > b.Discount
			}
		} else if a.Voucher.MinOrderValue != b.Voucher.MinOrderValue {
			return a.Voucher.MinOrderValue < b.Voucher.MinOrderValue
		}
		return a.Voucher.Code < b.Voucher.Code
	})
	return ranked
}
