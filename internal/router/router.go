package router

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/todo-api/internal/handler"
	"github.com/noah-isme/todo-api/internal/middleware"
	"github.com/noah-isme/todo-api/internal/models"
	"github.com/noah-isme/todo-api/internal/security"
	"github.com/noah-isme/todo-api/internal/service"
	"github.com/noah-isme/todo-api/pkg/config"
	"github.com/noah-isme/todo-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/todo-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/todo-api/pkg/middleware/requestid"
)

// UserLookup resolves token subjects to accounts.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Dependencies are the long-lived components shared by every request.
type Dependencies struct {
	Logger  *zap.Logger
	Metrics *service.MetricsService
	Events  service.SecurityEventRecorder
	Limiter *security.RateLimiter
	Tokens  *security.TokenManager
	Users   UserLookup

	Auth        *handler.AuthHandler
	Collections *handler.CollectionHandler
	Todos       *handler.TodoHandler
	Health      *handler.MetricsHandler
}

// New builds the engine. The defense chain runs in a fixed order: recovery, request id,
// access log, metrics, security headers, rate limit, CORS, then authentication on protected groups.
// CORS answers preflights itself, so it sits behind the headers and admission control.
func New(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	logr := deps.Logger
	if logr == nil {
		logr = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.SecurityHeaders(security.NewHeaderPolicy(cfg.APIPrefix)))
	r.Use(middleware.RateLimit(deps.Limiter, deps.Events, deps.Metrics, cfg.Security.TrustProxy))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", deps.Health.Health)
	r.GET("/ready", deps.Health.Ready)
	r.GET("/metrics", deps.Health.Prometheus)
	if cfg.Swagger.Enabled && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authenticate := middleware.Authenticate(deps.Tokens, deps.Users, deps.Events, deps.Metrics)
	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", deps.Auth.Register)
	auth.POST("/login", deps.Auth.Login)
	auth.POST("/refresh", deps.Auth.Refresh)
	auth.POST("/logout", authenticate, deps.Auth.Logout)
	auth.GET("/me", authenticate, deps.Auth.Me)

	protected := api.Group("", authenticate)
	protected.GET("/collections", deps.Collections.List)
	protected.POST("/collections", deps.Collections.Create)
	protected.GET("/collections/:id", deps.Collections.Get)
	protected.PUT("/collections/:id", deps.Collections.Update)
	protected.DELETE("/collections/:id", deps.Collections.Delete)
	protected.GET("/collections/:id/tasks", deps.Todos.List)
	protected.POST("/collections/:id/tasks", deps.Todos.Create)
	protected.PUT("/tasks/:taskId", deps.Todos.Update)
	protected.DELETE("/tasks/:taskId", deps.Todos.Delete)
	protected.POST("/tasks/:taskId/complete", deps.Todos.Complete)
	protected.POST("/tasks/:taskId/add-money", deps.Todos.AddMoney)

	return r
}
