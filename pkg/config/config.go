package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// minSigningKeyBytes is the HS256 key floor (256 bits).
const minSigningKeyBytes = 32

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Swagger   SwaggerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Audience          string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// Base64SecretPrefix marks a JWT_SECRET that holds base64 key material. Secrets without it are raw passphrases.
const Base64SecretPrefix = "base64:"

// SigningKey returns the key bytes of the configured secret.
func (c JWTConfig) SigningKey() ([]byte, error) {
	encoded, ok := strings.CutPrefix(c.Secret, Base64SecretPrefix)
	if !ok {
		return []byte(c.Secret), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET has the %q prefix but is not valid base64: %w", Base64SecretPrefix, err)
	}
	return decoded, nil
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RateLimitRule is the (capacity, window) pair bound to an endpoint class.
type RateLimitRule struct {
	Requests int
	Window   time.Duration
}

// RateLimitConfig holds the per-class admission rules and registry housekeeping.
type RateLimitConfig struct {
	Login         RateLimitRule
	Register      RateLimitRule
	Auth          RateLimitRule
	API           RateLimitRule
	SweepInterval time.Duration
	IdleWindows   int
}

// SecurityConfig groups request-defense settings that are not tied to tokens or throttling.
type SecurityConfig struct {
	TrustProxy              bool
	RevocationSweepInterval time.Duration
	PersistEvents           bool
}

// SwaggerConfig toggles the interactive API docs.
type SwaggerConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = strings.TrimRight(v.GetString("API_PREFIX"), "/")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Audience:          v.GetString("JWT_AUDIENCE"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.RateLimit = RateLimitConfig{
		Login:         rule(v, "LOGIN", time.Minute),
		Register:      rule(v, "REGISTER", time.Hour),
		Auth:          rule(v, "AUTH", time.Minute),
		API:           rule(v, "API", time.Minute),
		SweepInterval: parseDuration(v.GetString("RATE_LIMIT_SWEEP_INTERVAL"), 5*time.Minute),
		IdleWindows:   v.GetInt("RATE_LIMIT_IDLE_WINDOWS"),
	}

	cfg.Security = SecurityConfig{
		TrustProxy:              v.GetBool("TRUST_PROXY"),
		RevocationSweepInterval: parseDuration(v.GetString("REVOCATION_SWEEP_INTERVAL"), 10*time.Minute),
		PersistEvents:           v.GetBool("PERSIST_SECURITY_EVENTS"),
	}

	cfg.Swagger = SwaggerConfig{Enabled: v.GetBool("ENABLE_SWAGGER")}

	return cfg, nil
}

// Validate reports configuration that would leave the request-defense layer unusable.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if key, err := c.JWT.SigningKey(); err != nil {
		errs = append(errs, err)
	} else if len(key) < minSigningKeyBytes {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes (after decoding when %q-prefixed)", minSigningKeyBytes, Base64SecretPrefix))
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		errs = append(errs, errors.New("JWT_ISSUER and JWT_AUDIENCE are required"))
	}
	if c.JWT.Expiration <= 0 || c.JWT.RefreshExpiration <= 0 {
		errs = append(errs, errors.New("token expirations must be positive"))
	}
	for name, r := range map[string]RateLimitRule{
		"LOGIN":    c.RateLimit.Login,
		"REGISTER": c.RateLimit.Register,
		"AUTH":     c.RateLimit.Auth,
		"API":      c.RateLimit.API,
	} {
		if r.Requests <= 0 || r.Window <= 0 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_%s requests and window must be positive", name))
		}
	}
	if c.RateLimit.IdleWindows <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_IDLE_WINDOWS must be positive"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "todoapp")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "todoapp")
	v.SetDefault("JWT_AUDIENCE", "todoapp-client")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RATE_LIMIT_LOGIN_REQUESTS", 5)
	v.SetDefault("RATE_LIMIT_LOGIN_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_REGISTER_REQUESTS", 3)
	v.SetDefault("RATE_LIMIT_REGISTER_WINDOW", "60m")
	v.SetDefault("RATE_LIMIT_AUTH_REQUESTS", 10)
	v.SetDefault("RATE_LIMIT_AUTH_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_API_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_API_WINDOW", "1m")
	v.SetDefault("RATE_LIMIT_SWEEP_INTERVAL", "5m")
	v.SetDefault("RATE_LIMIT_IDLE_WINDOWS", 3)

	v.SetDefault("TRUST_PROXY", true)
	v.SetDefault("REVOCATION_SWEEP_INTERVAL", "10m")
	v.SetDefault("PERSIST_SECURITY_EVENTS", true)

	v.SetDefault("ENABLE_SWAGGER", true)
}

func rule(v *viper.Viper, class string, fallbackWindow time.Duration) RateLimitRule {
	return RateLimitRule{
		Requests: v.GetInt("RATE_LIMIT_" + class + "_REQUESTS"),
		Window:   parseDuration(v.GetString("RATE_LIMIT_"+class+"_WINDOW"), fallbackWindow),
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
