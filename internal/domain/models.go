package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Money is an amount in whole currency units (VND has no minor unit)
type Money = int64

// ProductID is the catalog identity of a product. Upstream services send it
// either as a JSON number or a JSON string; both decode to the same value.
type ProductID string

// UnmarshalJSON accepts both numeric and string ids
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a string or number: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

func (id ProductID) String() string {
	return string(id)
}

// Product is the catalog read model consumed by the cart
type Product struct {
	ID            ProductID `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	Brand         string    `json:"brand" yaml:"brand"`
	Price         Money     `json:"price" yaml:"price"`
	OriginalPrice *Money    `json:"originalPrice,omitempty" yaml:"originalPrice,omitempty"`
	Stock         int       `json:"stock" yaml:"stock"`
	Image         string    `json:"image" yaml:"image"`
	Variants      []Variant `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// Variant is a named attribute group such as "Size"
type Variant struct {
	Name    string          `json:"name" yaml:"name"`
	Options []VariantOption `json:"options" yaml:"options"`
}

// Option looks up an option by its displayed name
func (v Variant) Option(name string) (VariantOption, bool) {
	for _, opt := range v.Options {
		if opt.Name == name {
			return opt, true
		}
	}
	return VariantOption{}, false
}

// VariantOption carries absolute overrides of the product's price, stock and image
type VariantOption struct {
	Name  string `json:"name" yaml:"name"`
	Price Money  `json:"price" yaml:"price"`
	Stock int    `json:"stock" yaml:"stock"`
	SKU   string `json:"sku" yaml:"sku"`
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
}

// SelectedVariant is the resolved variant choice stored on a cart line.
// Name is the primary group's option name and forms part of the line identity;
// Price, Stock, SKU and Image are the resolved values.
type SelectedVariant struct {
	Name  string `json:"name"`
	Price Money  `json:"price"`
	Stock int    `json:"stock"`
	SKU   string `json:"sku,omitempty"`
	Image string `json:"image,omitempty"`
}

// CartItem is a single line in the cart
type CartItem struct {
	Product         Product          `json:"product"`
	Quantity        int              `json:"quantity"`
	SelectedVariant *SelectedVariant `json:"selectedVariant,omitempty"`
	SelectedColor   string           `json:"selectedColor,omitempty"`
}

// Key returns the line identity of the item
func (i CartItem) Key() LineKey {
	key := LineKey{ProductID: i.Product.ID.String(), Color: i.SelectedColor}
	if i.SelectedVariant != nil {
		key.Variant = i.SelectedVariant.Name
	}
	return key
}

// UnitPrice is the selected variant's price, or the product price
func (i CartItem) UnitPrice() Money {
	if i.SelectedVariant != nil {
		return i.SelectedVariant.Price
	}
	return i.Product.Price
}

// StockCeiling is the selected variant's stock, or the product stock
func (i CartItem) StockCeiling() int {
	if i.SelectedVariant != nil {
		return i.SelectedVariant.Stock
	}
	return i.Product.Stock
}

// Image is the variant image override when present
func (i CartItem) Image() string {
	if i.SelectedVariant != nil && i.SelectedVariant.Image != "" {
		return i.SelectedVariant.Image
	}
	return i.Product.Image
}

// LineKey is the (productId, variantKey, colorKey) identity of a cart line.
// Empty Variant or Color means none was selected.
type LineKey struct {
	ProductID string `json:"productId"`
	Variant   string `json:"variant,omitempty"`
	Color     string `json:"color,omitempty"`
}

// Voucher is the canonical voucher read model. Use DecodeVoucher(s) to build
// it from upstream JSON.
type Voucher struct {
	Code          string       `json:"code"`
	Description   string       `json:"description,omitempty"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue int64        `json:"discountValue"`
	MaxDiscount   *Money       `json:"maxDiscount,omitempty"`
	MinOrderValue Money        `json:"minOrderValue"`
	ExpiryDate    time.Time    `json:"expiryDate"`
	UsageLimit    int          `json:"usageLimit"`
	UsedCount     int          `json:"usedCount"`
	IsActive      bool         `json:"isActive"`
}

// CustomerInfo is the buyer and delivery contact on an order
type CustomerInfo struct {
	FullName string `json:"fullName" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Email    string `json:"email"`
	Address  string `json:"address" binding:"required"`
	City     string `json:"city" binding:"required"`
	Ward     string `json:"ward"`
	Note     string `json:"note,omitempty"`
}

// ShippingInfo is the checkout pre-fill snapshot saved after a successful order
type ShippingInfo struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Ward     string `json:"ward"`
}

// OrderItem is a frozen copy of a cart line at submission time
type OrderItem struct {
	ProductID    ProductID `json:"productId"`
	ProductName  string    `json:"productName"`
	ProductBrand string    `json:"productBrand"`
	ProductImage string    `json:"productImage"`
	Price        Money     `json:"price"`
	Quantity     int       `json:"quantity"`
	VariantName  string    `json:"variantName,omitempty"`
	SKU          string    `json:"sku,omitempty"`
	Color        string    `json:"color,omitempty"`
}

// Order represents a placed storefront order
type Order struct {
	ID             uuid.UUID     `json:"id"`
	RequestID      uuid.UUID     `json:"requestId"`
	Items          []OrderItem   `json:"items"`
	CustomerInfo   CustomerInfo  `json:"customerInfo"`
	PaymentMethod  string        `json:"paymentMethod"`
	Subtotal       Money         `json:"subtotal"`
	VATAmount      Money         `json:"vatAmount"`
	ShippingFee    Money         `json:"shippingFee"`
	DiscountAmount Money         `json:"discountAmount"`
	VoucherCode    *string       `json:"voucherCode,omitempty"`
	TotalAmount    Money         `json:"totalAmount"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"paymentStatus"`
	CancelReason   *string       `json:"cancelReason,omitempty"`
	CancelledBy    *CancelActor  `json:"cancelledBy,omitempty"`
	CancelledAt    *time.Time    `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// IsPaid treats delivered orders as paid even if the flag was never flipped
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid || o.Status == OrderStatusDelivered
}

// StatusEvent is an externally pushed order update. Nil fields were not
// carried by the push and must not overwrite local values.
type StatusEvent struct {
	OrderID       uuid.UUID      `json:"orderId" binding:"required"`
	Status        *OrderStatus   `json:"status,omitempty"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
	OccurredAt    time.Time      `json:"occurredAt"`
}
