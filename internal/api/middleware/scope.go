package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kicksvault/storefront/internal/repository"
)

const (
	// UserIDHeader carries the signed-in user id set by the auth gateway
	UserIDHeader = "X-User-ID"
	// GuestIDHeader carries the anonymous session id of a guest
	GuestIDHeader = "X-Guest-ID"

	scopeKey = "cart_scope"
)

// ScopeMiddleware derives the cart persistence scope from the caller identity
func ScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(scopeKey, ScopeFor(c.GetHeader(UserIDHeader), c.GetHeader(GuestIDHeader)))
		c.Next()
	}
}

// ScopeFor maps an identity onto its scope key. Signed-in users and guests
// live in disjoint namespaces so ids can never collide across them.
func ScopeFor(userID, guestID string) string {
	if id := strings.TrimSpace(userID); id != "" {
		return "user:" + id
	}
	if id := strings.TrimSpace(guestID); id != "" {
		return repository.GuestScope + ":" + id
	}
	return repository.GuestScope
}

// GetScope retrieves the scope from context
func GetScope(c *gin.Context) string {
	if scope, ok := c.Get(scopeKey); ok {
		if s, ok := scope.(string); ok {
			return s
		}
	}
	return repository.GuestScope
}

// IsSignedIn reports whether the request carries a user identity
func IsSignedIn(c *gin.Context) bool {
	return strings.HasPrefix(GetScope(c), "user:")
}
