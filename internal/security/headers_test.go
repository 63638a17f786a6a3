package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderPolicyApply(t *testing.T) {
	p := NewHeaderPolicy("/api/")

	h := http.Header{}
	p.Apply(h, httptest.NewRequest(http.MethodGet, "/api/collections", nil))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	assert.Contains(t, h.Get("Content-Security-Policy"), "frame-ancestors 'none'")
	assert.Contains(t, h.Get("Permissions-Policy"), "camera=()")
	assert.Empty(t, h.Get("Cache-Control"))
	assert.Empty(t, h.Get("Strict-Transport-Security"))

	h = http.Header{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.TLS = &tls.ConnectionState{}
	p.Apply(h, req)
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", h.Get("Cache-Control"))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
	assert.Equal(t, "0", h.Get("Expires"))
	assert.NotEmpty(t, h.Get("Strict-Transport-Security"))

	h = http.Header{}
	p.Apply(h, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.Equal(t, "no-cache", h.Get("Pragma"))
}
