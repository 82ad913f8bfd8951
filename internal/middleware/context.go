package middleware

import (
	"github.com/gin-gonic/gin"
)

// IPMiddleware stores the client IP in the request context so handlers and
// the rate limiter see the same value.
func IPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Gin's ClientIP() handles X-Forwarded-For and other headers
		c.Set("client_ip", c.ClientIP())
		c.Next()
	}
}
