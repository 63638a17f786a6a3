package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/todo-api/internal/security"
)

// SecurityHeaders applies the response header policy before the handler runs.
func SecurityHeaders(policy security.HeaderPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy.Apply(c.Writer.Header(), c.Request)
		c.Next()
	}
}
