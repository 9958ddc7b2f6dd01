package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/api/middleware"
	"github.com/kicksvault/storefront/internal/metrics"
	"github.com/kicksvault/storefront/internal/repository"
)

// HandleLogout handles POST /v1/session/logout. It purges the signed-in
// user's cart, voucher selection and saved shipping info.
func HandleLogout(scopes repository.ScopeStore, m *metrics.Metrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !middleware.IsSignedIn(c) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}

		store, ok := openCart(c, scopes, m, logger)
		if !ok {
			return
		}
		if err := store.Purge(c.Request.Context()); err != nil {
			logger.Error("Failed to purge session state", zap.String("scope", store.Scope()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log out"})
			return
		}

		logger.Info("Session state purged", zap.String("scope", store.Scope()))
		c.Status(http.StatusNoContent)
	}
}
