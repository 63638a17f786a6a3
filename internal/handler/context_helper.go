package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/todo-api/internal/middleware"
	"github.com/noah-isme/todo-api/internal/models"
	appErrors "github.com/noah-isme/todo-api/pkg/errors"
	"github.com/noah-isme/todo-api/pkg/response"
)

// requireUser writes a 401 and returns false when Authenticate did not run.
func requireUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return user, true
}

func clientMeta(c *gin.Context) (ip, userAgent string) {
	return middleware.ClientKey(c), c.GetHeader("User-Agent")
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}
