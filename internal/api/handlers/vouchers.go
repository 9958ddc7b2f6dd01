package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/domain"
	"github.com/kicksvault/storefront/internal/metrics"
	"github.com/kicksvault/storefront/internal/pricing"
	"github.com/kicksvault/storefront/internal/repository"
)

// HandleRankVouchers handles POST /v1/vouchers/rank. The body is the voucher
// list fetched from the voucher service; it is ranked against the caller's
// current cart subtotal.
func HandleRankVouchers(scopes repository.ScopeStore, m *metrics.Metrics, now func() time.Time, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		vouchers, err := domain.DecodeVouchers(body)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "invalid voucher list",
				"details": err.Error(),
			})
			return
		}

		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}

		subtotal := store.TotalPrice()
		c.JSON(http.StatusOK, gin.H{
			"subtotal": subtotal,
			"vouchers": pricing.RankVouchers(vouchers, subtotal, now()),
		})
	}
}
