package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	_ "github.com/noah-isme/todo-api/api/swagger"
	"github.com/noah-isme/todo-api/internal/handler"
	"github.com/noah-isme/todo-api/internal/repository"
	"github.com/noah-isme/todo-api/internal/router"
	"github.com/noah-isme/todo-api/internal/security"
	"github.com/noah-isme/todo-api/internal/service"
	"github.com/noah-isme/todo-api/pkg/config"
	"github.com/noah-isme/todo-api/pkg/database"
	"github.com/noah-isme/todo-api/pkg/jobs"
	"github.com/noah-isme/todo-api/pkg/logger"
)

// @title Todo API
// @version 1.0.0
// @description Todo collections behind token authentication, admission control and input validation
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	eventBufferSize = 256
	keygenBytes     = 32
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "todo-api",
		Short:         "Todo API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "keygen",
		Short: "Print a random base64: signing key for JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := make([]byte, keygenBytes)
			if _, err := rand.Read(key); err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.Base64SecretPrefix+base64.StdEncoding.EncodeToString(key))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "todo-api %s\n", version)
		},
	})

	return cmd
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	users := repository.NewUserRepository(db)
	collections := repository.NewCollectionRepository(db)
	todos := repository.NewTodoRepository(db)

	key, err := cfg.JWT.SigningKey()
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	codec, err := security.NewTokenCodec(key, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}
	tokens := security.NewTokenManager(codec, security.NewRevocationRegistry(), cfg.JWT.Expiration, cfg.JWT.RefreshExpiration)

	limiter, err := security.NewRateLimiter(endpointClasses(cfg), cfg.RateLimit.IdleWindows)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	metrics := service.NewMetricsService()
	metrics.TrackRegistries(tokens.Revocations(), limiter)

	var events *service.SecurityEventService
	if cfg.Security.PersistEvents {
		events = service.NewSecurityEventService(repository.NewSecurityEventRepository(db), metrics, logr, eventBufferSize)
	} else {
		events = service.NewSecurityEventService(nil, metrics, logr, eventBufferSize)
	}
	events.Start(ctx)
	defer events.Stop()

	authSvc := service.NewAuthService(users, tokens, service.NewBcryptHasher(bcrypt.DefaultCost), events, nil, logr)
	collectionSvc := service.NewCollectionService(collections, events, nil, logr)
	todoSvc := service.NewTodoService(todos, collections, events, nil, logr)

	engine := router.New(cfg, router.Dependencies{
		Logger:      logr,
		Metrics:     metrics,
		Events:      events,
		Limiter:     limiter,
		Tokens:      tokens,
		Users:       users,
		Auth:        handler.NewAuthHandler(authSvc),
		Collections: handler.NewCollectionHandler(collectionSvc),
		Todos:       handler.NewTodoHandler(todoSvc),
		Health:      handler.NewMetricsHandler(metrics, db),
	})

	sweepers := []*jobs.Ticker{
		jobs.NewTicker("revocation-sweep", func(context.Context) (int, error) {
			return tokens.Revocations().Sweep(), nil
		}, jobs.TickerConfig{Interval: cfg.Security.RevocationSweepInterval, Logger: logr}),
		jobs.NewTicker("rate-limit-sweep", func(context.Context) (int, error) {
			return limiter.Sweep(), nil
		}, jobs.TickerConfig{Interval: cfg.RateLimit.SweepInterval, Logger: logr}),
	}
	for _, t := range sweepers {
		t.Start(ctx)
		defer t.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// endpointClasses takes the stock prefix table and applies the configured quotas.
func endpointClasses(cfg *config.Config) []security.EndpointClass {
	rules := map[string]config.RateLimitRule{
		security.ClassLogin:    cfg.RateLimit.Login,
		security.ClassRegister: cfg.RateLimit.Register,
		security.ClassAuth:     cfg.RateLimit.Auth,
		security.ClassAPI:      cfg.RateLimit.API,
	}
	classes := security.DefaultEndpointClasses(cfg.APIPrefix)
	for i := range classes {
		if rule, ok := rules[classes[i].Name]; ok {
			classes[i].Capacity = rule.Requests
			classes[i].Window = rule.Window
		}
	}
	return classes
}
