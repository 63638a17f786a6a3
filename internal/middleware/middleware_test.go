package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/todo-api/internal/models"
	"github.com/noah-isme/todo-api/internal/security"
	"github.com/noah-isme/todo-api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func (r *recordedEvents) Record(ctx context.Context, event models.SecurityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordedEvents) last() models.SecurityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return models.SecurityEvent{}
	}
	return r.events[len(r.events)-1]
}

type stubUsers struct {
	users map[string]*models.User
	err   error
}

func (s *stubUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func newLimiter(t *testing.T, loginCapacity int) *security.RateLimiter {
	t.Helper()
	classes := []security.EndpointClass{
		{Name: security.ClassLogin, Prefix: "/api/auth/login", Capacity: loginCapacity, Window: time.Minute},
		{Name: security.ClassAPI, Prefix: "", Capacity: 100, Window: time.Minute},
	}
	limiter, err := security.NewRateLimiter(classes, 3)
	require.NoError(t, err)
	return limiter
}

func TestRateLimitRejectsAfterCapacity(t *testing.T) {
	events := &recordedEvents{}
	router := gin.New()
	router.Use(RateLimit(newLimiter(t, 2), events, service.NewMetricsService(), false))
	handled := 0
	router.POST("/api/auth/login", func(c *gin.Context) {
		handled++
		c.Status(http.StatusOK)
	})

	send := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.1.1.1:5000"
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get(HeaderRateLimitRemaining))

	second := send()
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get(HeaderRateLimitRemaining))

	third := send()
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, 2, handled)
	assert.Equal(t, "0", third.Header().Get(HeaderRateLimitRemaining))
	assert.NotEmpty(t, third.Header().Get(HeaderRateLimitRetryAfter))
	assert.Equal(t, third.Header().Get(HeaderRateLimitRetryAfter), third.Header().Get(HeaderRetryAfter))

	body := decodeError(t, third)
	assert.Equal(t, "RATE_LIMITED", body["error"])
	assert.Equal(t, "Too many requests. Please try again later.", body["message"])

	event := events.last()
	assert.Equal(t, security.EventRateLimited, event.Event)
	assert.Equal(t, "10.1.1.1", event.IPAddress)
	assert.Equal(t, security.ClassLogin, event.Detail)
}

func TestRateLimitSeparatesClientsAndClasses(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(newLimiter(t, 1), nil, nil, true))
	router.POST("/api/auth/login", func(c *gin.Context) { c.String(http.StatusOK, ClientKey(c)) })
	router.GET("/api/collections", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(method, path, forwarded string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("X-Forwarded-For", forwarded)
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send(http.MethodPost, "/api/auth/login", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "203.0.113.7", first.Body.String())

	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "/api/auth/login", "203.0.113.7").Code)
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/api/auth/login", "198.51.100.2").Code)

	api := send(http.MethodGet, "/api/collections", "203.0.113.7")
	assert.Equal(t, http.StatusOK, api.Code)
	assert.Equal(t, "99", api.Header().Get(HeaderRateLimitRemaining))
}

type authFixture struct {
	tokens *security.TokenManager
	users  *stubUsers
	events *recordedEvents
	router *gin.Engine
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	codec, err := security.NewTokenCodec([]byte(strings.Repeat("s", security.MinSigningKeyBytes)), "todoapp", "todoapp-client")
	require.NoError(t, err)
	f := &authFixture{
		tokens: security.NewTokenManager(codec, nil, time.Minute, time.Hour),
		users: &stubUsers{users: map[string]*models.User{
			"alice_01": {ID: "u1", Username: "alice_01", Active: true},
			"frozen":   {ID: "u2", Username: "frozen", Active: false},
		}},
		events: &recordedEvents{},
		router: gin.New(),
	}
	f.router.Use(Authenticate(f.tokens, f.users, f.events, service.NewMetricsService()))
	f.router.GET("/api/auth/me", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		claims, ok := Claims(c)
		require.True(t, ok)
		assert.Equal(t, user.Username, claims.Subject)
		c.String(http.StatusOK, user.ID+"|"+AccessToken(c))
	})
	return f
}

func (f *authFixture) call(header string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateAcceptsValidAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	token, err := f.tokens.IssueAccessToken("alice_01")
	require.NoError(t, err)

	rec := f.call("Bearer " + token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1|"+token, rec.Body.String())
}

func TestAuthenticateRejections(t *testing.T) {
	f := newAuthFixture(t)

	revoked, err := f.tokens.IssueAccessToken("alice_01")
	require.NoError(t, err)
	f.tokens.Revoke(revoked)
	refresh, err := f.tokens.IssueRefreshToken("alice_01")
	require.NoError(t, err)
	ghost, err := f.tokens.IssueAccessToken("ghost")
	require.NoError(t, err)
	frozen, err := f.tokens.IssueAccessToken("frozen")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		reason string
	}{
		{"missing header", "", "missing_bearer"},
		{"wrong scheme", "Basic abc", "missing_bearer"},
		{"garbage", "Bearer not-a-token", "malformed"},
		{"revoked", "Bearer " + revoked, "revoked"},
		{"refresh used as access", "Bearer " + refresh, "kind_mismatch"},
		{"unknown subject", "Bearer " + ghost, "unknown_subject"},
		{"inactive user", "Bearer " + frozen, "inactive_user"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.call(tc.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "UNAUTHORIZED", body["error"])
			assert.Equal(t, "authentication required", body["message"])

			event := f.events.last()
			assert.Equal(t, security.EventTokenRejected, event.Event)
			assert.Equal(t, tc.reason, event.Detail)
		})
	}
}

func TestAuthenticateLookupFailure(t *testing.T) {
	f := newAuthFixture(t)
	token, err := f.tokens.IssueAccessToken("alice_01")
	require.NoError(t, err)
	f.users.err = errors.New("db down")

	rec := f.call("Bearer " + token)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders(security.NewHeaderPolicy("/api")))
	router.GET("/api/auth/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/collections", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/collections", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestMetricsRecordsRouteTemplate(t *testing.T) {
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/api/collections/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/collections/42", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	paths := map[string]bool{}
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					paths[label.GetValue()] = true
				}
			}
		}
	}
	assert.True(t, paths["/api/collections/:id"])
	assert.True(t, paths["unmatched"])
}
