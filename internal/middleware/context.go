package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/todo-api/internal/models"
	"github.com/noah-isme/todo-api/internal/security"
)

// Gin context keys populated by the request pipeline.
const (
	ContextUserKey   = "currentUser"
	ContextClaimsKey = "tokenClaims"
	ContextTokenKey  = "accessToken"
	ContextClientKey = "clientKey"
)

// CurrentUser returns the user resolved by Authenticate.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

// Claims returns the verified access-token claims.
func Claims(c *gin.Context) (*security.Claims, bool) {
	value, ok := c.Get(ContextClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*security.Claims)
	return claims, ok && claims != nil
}

// AccessToken returns the raw bearer token accepted for this request.
func AccessToken(c *gin.Context) string {
	return c.GetString(ContextTokenKey)
}

// ClientKey returns the rate-limit identity of the caller, falling back to gin's client IP.
func ClientKey(c *gin.Context) string {
	if key := c.GetString(ContextClientKey); key != "" {
		return key
	}
	return c.ClientIP()
}
