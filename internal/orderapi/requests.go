package orderapi

import (
	"github.com/google/uuid"

	"github.com/kicksvault/storefront/internal/domain"
)

// CreateOrderRequest is the order-creation payload sent to the order service
type CreateOrderRequest struct {
	RequestID      uuid.UUID            `json:"requestId"`
	Items          []domain.OrderItem   `json:"items"`
	CustomerInfo   domain.CustomerInfo  `json:"customerInfo"`
	PaymentMethod  string               `json:"paymentMethod"`
	Subtotal       domain.Money         `json:"subtotal"`
	VATAmount      domain.Money         `json:"vatAmount"`
	TotalAmount    domain.Money         `json:"totalAmount"`
	ShippingFee    domain.Money         `json:"shippingFee"`
	DiscountAmount domain.Money         `json:"discountAmount"`
	VoucherCode    *string              `json:"voucherCode,omitempty"`
	Status         domain.OrderStatus   `json:"status"`
	IsPaid         bool                 `json:"isPaid"`
	PaymentStatus  domain.PaymentStatus `json:"paymentStatus"`
}

// CancelOrderRequest is the order-cancellation payload
type CancelOrderRequest struct {
	CancelReason string `json:"cancelReason"`
}

// errorResponse covers the error bodies the order service returns
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
