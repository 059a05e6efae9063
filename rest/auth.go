package rest

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const apiKeyHeader = "x-api-key"

// APIKeyAuth guards routes with a shared key presented in the x-api-key
// header. An empty configured key disables the check (local development).
type APIKeyAuth struct {
	key string
}

// NewAPIKeyAuth creates the auth middleware holder.
func NewAPIKeyAuth(key string) *APIKeyAuth {
	return &APIKeyAuth{key: key}
}

// Middleware rejects requests without a matching key before anything else
// runs; an unauthenticated request never reaches the sandbox.
func (a *APIKeyAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.key == "" {
			c.Next()
			return
		}
		provided := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(a.key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
