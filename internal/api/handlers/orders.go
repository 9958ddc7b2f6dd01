package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/api/middleware"
	"github.com/kicksvault/storefront/internal/domain"
	"github.com/kicksvault/storefront/internal/metrics"
	"github.com/kicksvault/storefront/internal/repository"
	"github.com/kicksvault/storefront/internal/service"
	apperrors "github.com/kicksvault/storefront/pkg/errors"
)

// CancelOrderRequest represents cancel order request
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// OrderResponse represents the order response
type OrderResponse struct {
	*domain.Order
	IsPaid bool `json:"isPaid"`
}

func orderResponse(order *domain.Order) OrderResponse {
	return OrderResponse{Order: order, IsPaid: order.IsPaid()}
}

// writeError maps service errors onto HTTP responses
func writeError(c *gin.Context, logger *zap.Logger, err error, action string) {
	var (
		notFound   *apperrors.ErrNotFound
		transition *apperrors.ErrInvalidStateTransition
		validation *apperrors.ErrValidation
		placement  *apperrors.ErrOrderPlacement
		upstream   *apperrors.ErrUpstream
	)
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
			"field": validation.Field,
		})
	case errors.As(err, &placement):
		// The order service's own message is shown to the buyer verbatim.
		c.JSON(http.StatusBadGateway, gin.H{"error": placement.Error()})
	case errors.As(err, &upstream):
		logger.Warn("Failed to "+action, zap.String("service", upstream.Service), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": upstream.Service + " is unavailable"})
	default:
		logger.Error("Failed to "+action, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + action})
	}
}

func parseOrderID(c *gin.Context) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return uuid.Nil, false
	}
	return orderID, true
}

// orderScope is the caller's scope, or every scope for admins
func orderScope(c *gin.Context, actor domain.CancelActor) string {
	if actor == domain.CancelledByAdmin {
		return service.AnyOwner
	}
	return middleware.GetScope(c)
}

// HandleCheckout handles POST /v1/checkout
func HandleCheckout(scopes repository.ScopeStore, orders *service.OrderService, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}

		order, breakdown, err := orders.PlaceOrder(c.Request.Context(), store, req)
		if err != nil {
			writeError(c, logger, err, "place order")
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"order":   orderResponse(order),
			"pricing": breakdown,
		})
	}
}

// HandleGetShippingInfo handles GET /v1/checkout/shipping-info
func HandleGetShippingInfo(scopes repository.ScopeStore, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}
		info, err := store.ShippingInfo(c.Request.Context())
		if err != nil {
			writeError(c, logger, err, "load shipping info")
			return
		}
		if info == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// HandleGetOrder handles GET /v1/orders/:id
func HandleGetOrder(orders *service.OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		order, err := orders.GetOrder(c.Request.Context(), middleware.GetScope(c), orderID)
		if err != nil {
			writeError(c, logger, err, "get order")
			return
		}

		c.JSON(http.StatusOK, orderResponse(order))
	}
}

// HandleListOrders handles GET /v1/orders. The admin listing spans every scope.
func HandleListOrders(orders *service.OrderService, admin bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		statusStr := c.Query("status")
		if statusStr != "" && !domain.OrderStatus(statusStr).IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}

		scope := middleware.GetScope(c)
		if admin {
			scope = service.AnyOwner
		}
		all, err := orders.ListOrders(c.Request.Context(), scope)
		if err != nil {
			writeError(c, logger, err, "list orders")
			return
		}
		out := make([]OrderResponse, 0, len(all))
		for _, order := range all {
			if statusStr != "" && order.Status != domain.OrderStatus(statusStr) {
				continue
			}
			out = append(out, orderResponse(order))
		}

		c.JSON(http.StatusOK, gin.H{"orders": out})
	}
}

// HandleCancelOrder handles POST /v1/orders/:id/cancel
func HandleCancelOrder(orders *service.OrderService, actor domain.CancelActor, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		var req CancelOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}

		order, err := orders.CancelOrder(c.Request.Context(), orderScope(c, actor), orderID, req.Reason, actor)
		if err != nil {
			writeError(c, logger, err, "cancel order")
			return
		}

		c.JSON(http.StatusOK, orderResponse(order))
	}
}

// HandleReorder handles POST /v1/orders/:id/reorder
func HandleReorder(scopes repository.ScopeStore, orders *service.OrderService, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}

		result, err := orders.Reorder(c.Request.Context(), orderID, store)
		if err != nil {
			writeError(c, logger, err, "reorder")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"result": result,
			"cart":   cartResponse(store, orders),
		})
	}
}
