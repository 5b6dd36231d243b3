package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// ServiceAuthMiddleware validates the shared-secret bearer token used by
// the operator dashboard and sibling services. End-user account
// management lives outside this service.
func ServiceAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
			})
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization format. Expected 'Bearer <token>'",
			})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Empty token",
			})
			c.Abort()
			return
		}

		expectedSecret := os.Getenv("INTERNAL_API_SECRET")
		if expectedSecret == "" {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal API secret not configured",
			})
			c.Abort()
			return
		}

		if token != expectedSecret {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid service token",
			})
			c.Abort()
			return
		}

		c.Set("service_auth", true)
		c.Next()
	}
}
