package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/todo-api/internal/models"
)

// requestEvent builds a security event carrying the caller identity of the current request.
func requestEvent(c *gin.Context, name, outcome, actor, detail string) models.SecurityEvent {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return models.SecurityEvent{
		Event:     name,
		Actor:     actor,
		Outcome:   outcome,
		Detail:    detail,
		IPAddress: ClientKey(c),
		UserAgent: c.GetHeader("User-Agent"),
		Path:      path,
	}
}
