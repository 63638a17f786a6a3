package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/todo-api/internal/security"
	"github.com/noah-isme/todo-api/internal/service"
	appErrors "github.com/noah-isme/todo-api/pkg/errors"
	"github.com/noah-isme/todo-api/pkg/response"
)

// Rate-limit response headers.
const (
	HeaderRateLimitRemaining  = "X-Rate-Limit-Remaining"
	HeaderRateLimitRetryAfter = "X-Rate-Limit-Retry-After-Seconds"
	HeaderRetryAfter          = "Retry-After"
)

// RateLimit admits each request against the endpoint class of its path. Rejected requests
// get 429 with retry hints and never reach the handler.
func RateLimit(limiter *security.RateLimiter, events service.SecurityEventRecorder, metrics *service.MetricsService, trustProxy bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := security.ClientKey(c.Request, trustProxy)
		c.Set(ContextClientKey, clientKey)

		class := limiter.Classify(c.Request.URL.Path)
		decision := limiter.TryConsume(clientKey, class)
		metrics.RecordAdmission(class.Name, decision.Allowed)

		c.Header(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
		if decision.Allowed {
			c.Next()
			return
		}

		retry := strconv.Itoa(decision.RetryAfterSeconds())
		c.Header(HeaderRateLimitRetryAfter, retry)
		c.Header(HeaderRetryAfter, retry)
		if events != nil {
			events.Record(c.Request.Context(), requestEvent(c, security.EventRateLimited, security.OutcomeBlocked, "", class.Name))
		}
		response.Abort(c, appErrors.ErrRateLimited)
	}
}
