package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// rawVoucher mirrors every field-name variant the voucher service has used
type rawVoucher struct {
	Code          string       `json:"code"`
	Description   string       `json:"description"`
	DiscountType  string       `json:"discountType"`
	DiscountValue json.Number  `json:"discountValue"`
	MaxDiscount   *json.Number `json:"maxDiscount"`
	MinOrderValue json.Number  `json:"minOrderValue"`
	ExpiryDate    string       `json:"expiryDate"`
	EndDate       string       `json:"endDate"`
	UsageLimit    json.Number  `json:"usageLimit"`
	UsedCount     json.Number  `json:"usedCount"`
	IsActive      *bool        `json:"isActive"`
}

// DecodeVouchers parses a JSON array of vouchers into the canonical shape
func DecodeVouchers(data []byte) ([]Voucher, error) {
	var raws []rawVoucher
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode vouchers: %w", err)
	}
	vouchers := make([]Voucher, 0, len(raws))
	for i, raw := range raws {
		v, err := raw.normalize()
		if err != nil {
			return nil, fmt.Errorf("voucher %d: %w", i, err)
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, nil
}

// DecodeVoucher parses a single voucher JSON object into the canonical shape
func DecodeVoucher(data []byte) (Voucher, error) {
	var raw rawVoucher
	if err := json.Unmarshal(data, &raw); err != nil {
		return Voucher{}, fmt.Errorf("failed to decode voucher: %w", err)
	}
	return raw.normalize()
}

// NormalizeCode makes voucher codes comparable case-insensitively
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ParseDiscountType maps every upstream spelling onto DiscountType
func ParseDiscountType(s string) (DiscountType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percent", "percentage":
		return DiscountPercentage, nil
	case "fixed", "amount":
		return DiscountFixed, nil
	default:
		return "", fmt.Errorf("unknown discount type %q", s)
	}
}

func (r rawVoucher) normalize() (Voucher, error) {
	code := NormalizeCode(r.Code)
	if code == "" {
		return Voucher{}, fmt.Errorf("voucher code is required")
	}

	discountType, err := ParseDiscountType(r.DiscountType)
	if err != nil {
		return Voucher{}, err
	}

	v := Voucher{
		Code:         code,
		Description:  r.Description,
		DiscountType: discountType,
		IsActive:     r.IsActive == nil || *r.IsActive,
	}

	if v.DiscountValue, err = numberToInt(r.DiscountValue); err != nil {
		return Voucher{}, fmt.Errorf("discountValue: %w", err)
	}
	if v.MinOrderValue, err = numberToInt(r.MinOrderValue); err != nil {
		return Voucher{}, fmt.Errorf("minOrderValue: %w", err)
	}
	if r.MaxDiscount != nil && *r.MaxDiscount != "" && discountType == DiscountPercentage {
		maxDiscount, err := numberToInt(*r.MaxDiscount)
		if err != nil {
			return Voucher{}, fmt.Errorf("maxDiscount: %w", err)
		}
		if maxDiscount > 0 {
			v.MaxDiscount = &maxDiscount
		}
	}

	usageLimit, err := numberToInt(r.UsageLimit)
	if err != nil {
		return Voucher{}, fmt.Errorf("usageLimit: %w", err)
	}
	usedCount, err := numberToInt(r.UsedCount)
	if err != nil {
		return Voucher{}, fmt.Errorf("usedCount: %w", err)
	}
	v.UsageLimit = int(usageLimit)
	v.UsedCount = int(usedCount)

	expiry := r.ExpiryDate
	if expiry == "" {
		expiry = r.EndDate
	}
	if v.ExpiryDate, err = parseExpiry(expiry); err != nil {
		return Voucher{}, err
	}

	return v, nil
}

func numberToInt(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f)), nil
}

// parseExpiry accepts RFC 3339 timestamps or bare dates. A bare date stays
// valid until the end of that day (UTC).
func parseExpiry(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("voucher expiry date is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Add(24*time.Hour - time.Nanosecond), nil
	}
	return time.Time{}, fmt.Errorf("invalid voucher expiry date %q", s)
}
