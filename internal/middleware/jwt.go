package middleware

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/todo-api/internal/models"
	"github.com/noah-isme/todo-api/internal/security"
	"github.com/noah-isme/todo-api/internal/service"
	appErrors "github.com/noah-isme/todo-api/pkg/errors"
	"github.com/noah-isme/todo-api/pkg/response"
)

type userLookup interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Authenticate protects routes by requiring an unrevoked access token whose subject is an active user.
// Every token failure is reported to the client as the same 401; the reason is only logged and counted.
func Authenticate(tokens *security.TokenManager, users userLookup, events service.SecurityEventRecorder, metrics *service.MetricsService) gin.HandlerFunc {
	reject := func(c *gin.Context, actor, reason string) {
		metrics.RecordTokenRejection(reason)
		if events != nil {
			events.Record(c.Request.Context(), requestEvent(c, security.EventTokenRejected, security.OutcomeFailure, actor, reason))
		}
		response.Abort(c, appErrors.ErrUnauthorized)
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			reject(c, "", "missing_bearer")
			return
		}

		subject, err := tokens.Subject(token)
		if err != nil {
			reject(c, "", security.TokenFailureReason(err))
			return
		}

		user, err := users.FindByUsername(c.Request.Context(), subject)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				reject(c, subject, "unknown_subject")
				return
			}
			response.Abort(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user"))
			return
		}
		if !user.Active {
			reject(c, subject, "inactive_user")
			return
		}

		claims, err := tokens.ValidateAccess(token, user.Username)
		if err != nil {
			reject(c, subject, security.TokenFailureReason(err))
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextClaimsKey, claims)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
