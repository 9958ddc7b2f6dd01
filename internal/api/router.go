package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/api/handlers"
	"github.com/kicksvault/storefront/internal/api/middleware"
	"github.com/kicksvault/storefront/internal/config"
	"github.com/kicksvault/storefront/internal/domain"
	"github.com/kicksvault/storefront/internal/events"
	"github.com/kicksvault/storefront/internal/metrics"
	"github.com/kicksvault/storefront/internal/repository"
	"github.com/kicksvault/storefront/internal/service"
)

// Dependencies are the collaborators the router wires into handlers
type Dependencies struct {
	Scopes   repository.ScopeStore
	Orders   *service.OrderService
	Catalog  service.Catalog // optional; nil trusts the client's product
	Events   *events.ChannelSource
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Now      func() time.Time
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, deps Dependencies, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Storefront routes, partitioned by caller identity
		shop := v1.Group("")
		shop.Use(middleware.ScopeMiddleware())
		{
			shop.GET("/cart", handlers.HandleGetCart(deps.Scopes, deps.Orders, deps.Metrics, logger))
			shop.GET("/cart/quote", handlers.HandleGetQuote(deps.Scopes, deps.Orders, deps.Metrics, logger))
			shop.DELETE("/cart", handlers.HandleClearCart(deps.Scopes, deps.Metrics, logger))
			shop.POST("/cart/items", handlers.HandleAddToCart(deps.Scopes, deps.Orders, deps.Catalog, deps.Metrics, logger))
			shop.PATCH("/cart/items", handlers.HandleUpdateQuantity(deps.Scopes, deps.Orders, deps.Metrics, logger))
			shop.DELETE("/cart/items/:productId", handlers.HandleRemoveFromCart(deps.Scopes, deps.Orders, deps.Metrics, logger))
			shop.PUT("/cart/voucher", handlers.HandleSelectVoucher(deps.Scopes, deps.Orders, deps.Metrics, logger))
			shop.DELETE("/cart/voucher", handlers.HandleRemoveVoucher(deps.Scopes, deps.Orders, deps.Metrics, logger))
			shop.POST("/vouchers/rank", handlers.HandleRankVouchers(deps.Scopes, deps.Metrics, deps.Now, logger))

			shop.GET("/checkout/shipping-info", handlers.HandleGetShippingInfo(deps.Scopes, deps.Metrics, logger))
			shop.POST("/checkout", handlers.HandleCheckout(deps.Scopes, deps.Orders, deps.Metrics, logger))

			shop.POST("/session/logout", handlers.HandleLogout(deps.Scopes, deps.Metrics, logger))

			shop.GET("/orders", handlers.HandleListOrders(deps.Orders, false, logger))
			shop.GET("/orders/:id", handlers.HandleGetOrder(deps.Orders, logger))
			shop.POST("/orders/:id/cancel", handlers.HandleCancelOrder(deps.Orders, domain.CancelledByUser, logger))
			shop.POST("/orders/:id/reorder", handlers.HandleReorder(deps.Scopes, deps.Orders, deps.Metrics, logger))
		}

		// Status pushes from the order service
		if deps.Events != nil {
			v1.POST("/orders/events", handlers.HandleStatusPush(deps.Events, logger))
		}

		// Admin routes (authentication is enforced by the gateway in front of this service)
		adminRoutes := v1.Group("/admin")
		{
			adminRoutes.POST("/orders/:id/cancel", handlers.HandleCancelOrder(deps.Orders, domain.CancelledByAdmin, logger))
			adminRoutes.GET("/orders", handlers.HandleListOrders(deps.Orders, true, logger))
		}
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
