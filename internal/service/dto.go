package service

import (
	"github.com/kicksvault/storefront/internal/cart"
	"github.com/kicksvault/storefront/internal/domain"
)

// CheckoutRequest is what the buyer submits at checkout
type CheckoutRequest struct {
	CustomerInfo  domain.CustomerInfo `json:"customerInfo" binding:"required"`
	PaymentMethod string              `json:"paymentMethod" binding:"required"`
}

// ReorderResult lists the outcome of re-adding each order line
type ReorderResult struct {
	Lines   []cart.AddResult   `json:"lines"`
	Skipped []domain.OrderItem `json:"skipped,omitempty"`
}

// ReconcileResult lists the fields a pushed event changed
type ReconcileResult struct {
	Applied  []string `json:"applied"`
	Conflict error    `json:"-"`
}
