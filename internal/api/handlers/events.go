package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/domain"
	"github.com/kicksvault/storefront/internal/events"
)

// HandleStatusPush handles POST /v1/orders/events. The order service pushes
// status and payment updates here; they are queued for reconciliation.
func HandleStatusPush(source *events.ChannelSource, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var event domain.StatusEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "validation failed",
				"details": err.Error(),
			})
			return
		}
		if event.Status == nil && event.PaymentStatus == nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "event carries no status"})
			return
		}

		if err := source.Publish(c.Request.Context(), event); err != nil {
			logger.Warn("Failed to queue status event",
				zap.String("order_id", event.OrderID.String()),
				zap.Error(err),
			)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event queue unavailable"})
			return
		}

		c.Status(http.StatusAccepted)
	}
}
