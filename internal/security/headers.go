package security

import (
	"net/http"
	"strings"
)

const (
	contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data: https:; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"
	permissionsPolicy = "camera=(), microphone=(), geolocation=(), payment=(), usb=(), fullscreen=(self), " +
		"accelerometer=(), gyroscope=(), magnetometer=()"
)

// HeaderPolicy writes the static response headers. Paths under NoStorePrefixes also get cache suppression.
type HeaderPolicy struct {
	NoStorePrefixes []string
}

// NewHeaderPolicy suppresses caching for the auth and user routes under apiPrefix.
func NewHeaderPolicy(apiPrefix string) HeaderPolicy {
	apiPrefix = strings.TrimRight(apiPrefix, "/")
	return HeaderPolicy{NoStorePrefixes: []string{apiPrefix + "/auth/", apiPrefix + "/users/"}}
}

// Apply sets the headers for a response to r.
func (p HeaderPolicy) Apply(h http.Header, r *http.Request) {
	h.Set("Content-Security-Policy", contentSecurityPolicy)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", permissionsPolicy)
	h.Set("Server", "")

	if r.TLS != nil {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	if p.noStore(r.URL.Path) {
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
	}
}

func (p HeaderPolicy) noStore(path string) bool {
	for _, prefix := range p.NoStorePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
