package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeyOperator is the gin context key the middleware sets on success.
const ContextKeyOperator = "operator"

// Middleware validates the Authorization header on REST routes, rejecting
// the request with 401 on any failure (§7: command/auth errors never crash
// the relay, they just deny the request).
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		operator, err := m.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(ContextKeyOperator, operator)
		c.Next()
	}
}

// AuthorizeUpgrade validates the token carried on a WebSocket upgrade
// request. Browsers cannot set a custom Authorization header during the WS
// handshake, so the token travels as a query parameter instead (§6.1's
// command channel is a WebSocket, not plain REST).
func AuthorizeUpgrade(m *Manager, r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return "", ErrMissingToken
	}
	return m.Validate(token)
}
