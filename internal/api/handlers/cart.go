package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/api/middleware"
	"github.com/kicksvault/storefront/internal/cart"
	"github.com/kicksvault/storefront/internal/domain"
	"github.com/kicksvault/storefront/internal/metrics"
	"github.com/kicksvault/storefront/internal/pricing"
	"github.com/kicksvault/storefront/internal/repository"
	"github.com/kicksvault/storefront/internal/service"
)

// AddToCartRequest represents an add-to-cart payload. With a catalog
// configured only ProductID is used and the live product is looked up.
// Without one, Product is the read model as the storefront received it.
type AddToCartRequest struct {
	ProductID  domain.ProductID  `json:"productId"`
	Product    domain.Product    `json:"product"`
	Quantity   int               `json:"quantity"`
	Selections map[string]string `json:"selections"`
	Color      string            `json:"color"`
}

// UpdateQuantityRequest represents a quantity stepper change
type UpdateQuantityRequest struct {
	ProductID domain.ProductID `json:"productId" binding:"required"`
	Variant   string           `json:"variant"`
	Color     string           `json:"color"`
	Quantity  int              `json:"quantity"`
}

// CartResponse represents the cart with its price breakdown
type CartResponse struct {
	Scope      string            `json:"scope"`
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"totalItems"`
	TotalPrice domain.Money      `json:"totalPrice"`
	Voucher    *domain.Voucher   `json:"voucher,omitempty"`
	Pricing    pricing.Breakdown `json:"pricing"`
}

// openCart loads the cart of the request's scope
func openCart(c *gin.Context, scopes repository.ScopeStore, m *metrics.Metrics, logger *zap.Logger) (*cart.Store, bool) {
	store, err := cart.Open(c.Request.Context(), scopes, middleware.GetScope(c), logger, m)
	if err != nil {
		logger.Error("Failed to open cart", zap.String("scope", middleware.GetScope(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}
	return store, true
}

func cartResponse(store *cart.Store, orders *service.OrderService) CartResponse {
	items := store.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponse{
		Scope:      store.Scope(),
		Items:      items,
		TotalItems: store.TotalItems(),
		TotalPrice: store.TotalPrice(),
		Voucher:    store.Voucher(),
		Pricing:    orders.Quote(store),
	}
}

// HandleGetCart handles GET /v1/cart
func HandleGetCart(scopes repository.ScopeStore, orders *service.OrderService, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, cartResponse(store, orders))
	}
}

// HandleGetQuote handles GET /v1/cart/quote
func HandleGetQuote(scopes repository.ScopeStore, orders *service.OrderService, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, orders.Quote(store))
	}
}

// HandleAddToCart handles POST /v1/cart/items
func HandleAddToCart(scopes repository.ScopeStore, orders *service.OrderService, catalog service.Catalog, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}
		productID := req.ProductID
		if productID == "" {
			productID = req.Product.ID
		}
		if productID == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "product id is required"})
			return
		}

		product := req.Product
		product.ID = productID
		if catalog != nil {
			live, err := catalog.GetProduct(c.Request.Context(), productID)
			if err != nil {
				writeError(c, logger, err, "load product")
				return
			}
			product = *live
		}

		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}

		result, err := store.AddSelection(c.Request.Context(), product, req.Quantity, req.Selections, req.Color)
		if err != nil {
			logger.Error("Failed to add to cart", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update cart"})
			return
		}
		if result.Incomplete() {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   result.Message,
				"missing": result.Missing,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"result": result,
			"cart":   cartResponse(store, orders),
		})
	}
}

// HandleUpdateQuantity handles PATCH /v1/cart/items
func HandleUpdateQuantity(scopes repository.ScopeStore, orders *service.OrderService, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateQuantityRequest
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

		key := domain.LineKey{ProductID: req.ProductID.String(), Variant: req.Variant, Color: req.Color}
		result, err := store.UpdateQuantity(c.Request.Context(), key, req.Quantity)
		if err != nil {
			logger.Error("Failed to update cart quantity", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update cart"})
			return
		}
		if !result.Found {
			c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"result": result,
			"cart":   cartResponse(store, orders),
		})
	}
}

// HandleRemoveFromCart handles DELETE /v1/cart/items/:productId. With a
// variant or color query parameter only that exact line is removed;
// otherwise every line of the product is.
func HandleRemoveFromCart(scopes repository.ScopeStore, orders *service.OrderService, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID := c.Param("productId")
		variant, hasVariant := c.GetQuery("variant")
		color, hasColor := c.GetQuery("color")

		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}

		var (
			removed int
			err     error
		)
		if hasVariant || hasColor {
			var found bool
			found, err = store.RemoveLine(c.Request.Context(), domain.LineKey{ProductID: productID, Variant: variant, Color: color})
			if found {
				removed = 1
			}
		} else {
			removed, err = store.Remove(c.Request.Context(), productID)
		}
		if err != nil {
			logger.Error("Failed to remove from cart", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update cart"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"removed": removed,
			"cart":    cartResponse(store, orders),
		})
	}
}

// HandleClearCart handles DELETE /v1/cart
func HandleClearCart(scopes repository.ScopeStore, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}
		if err := store.Clear(c.Request.Context()); err != nil {
			logger.Error("Failed to clear cart", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cart"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// HandleSelectVoucher handles PUT /v1/cart/voucher. The body is the voucher
// object as served by the voucher service.
func HandleSelectVoucher(scopes repository.ScopeStore, orders *service.OrderService, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		voucher, err := domain.DecodeVoucher(body)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "invalid voucher",
				"details": err.Error(),
			})
			return
		}

		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}
		if err := store.SelectVoucher(c.Request.Context(), &voucher); err != nil {
			logger.Error("Failed to select voucher", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to select voucher"})
			return
		}

		c.JSON(http.StatusOK, cartResponse(store, orders))
	}
}

// HandleRemoveVoucher handles DELETE /v1/cart/voucher
func HandleRemoveVoucher(scopes repository.ScopeStore, orders *service.OrderService, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}
		if err := store.SelectVoucher(c.Request.Context(), nil); err != nil {
			logger.Error("Failed to remove voucher", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove voucher"})
			return
		}
		c.JSON(http.StatusOK, cartResponse(store, orders))
	}
}
