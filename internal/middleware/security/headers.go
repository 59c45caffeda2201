package security

import (
	"fmt"
	"net/http"
	"strings"
)

// HeadersConfig describes the response headers the UI sends on every page.
type HeadersConfig struct {
	// ScriptSources are allowed in script-src next to 'self'; the htmx
	// bundle is loaded from here.
	ScriptSources []string

	// HSTSMaxAge is sent only on TLS requests; zero disables it.
	HSTSMaxAge int

	ReferrerPolicy    string
	PermissionsPolicy string

	// NoStore marks app pages uncacheable so a logged out browser never
	// shows a stale expense list. /static/ is exempt.
	NoStore bool
}

// DefaultHeadersConfig allows htmx from unpkg and nothing else off-site.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		ScriptSources:     []string{"https://unpkg.com"},
		HSTSMaxAge:        31536000,
		ReferrerPolicy:    "strict-origin-when-cross-origin",
		PermissionsPolicy: "geolocation=(), microphone=(), camera=(), payment=()",
		NoStore:           true,
	}
}

// ContentSecurityPolicy renders the policy for config. Inline scripts stay
// forbidden; htmx attributes do not need them.
func (c HeadersConfig) ContentSecurityPolicy() string {
	script := append([]string{"'self'"}, c.ScriptSources...)
	directives := [][2]string{
		{"default-src", "'self'"},
		{"script-src", strings.Join(script, " ")},
		{"style-src", "'self' 'unsafe-inline'"},
		{"img-src", "'self' data:"},
		{"connect-src", "'self'"},
		{"object-src", "'none'"},
		{"frame-ancestors", "'none'"},
		{"base-uri", "'self'"},
		{"form-action", "'self'"},
	}
	parts := make([]string, len(directives))
	for i, d := range directives {
		parts[i] = d[0] + " " + d[1]
	}
	return strings.Join(parts, "; ")
}

// HeadersMiddleware applies security headers to responses
type HeadersMiddleware struct {
	config HeadersConfig
	csp    string
}

// NewHeadersMiddleware creates a new security headers middleware
func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config, csp: config.ContentSecurityPolicy()}
}

// Middleware returns the HTTP middleware function
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("Content-Security-Policy", h.csp)
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Cross-Origin-Opener-Policy", "same-origin")
		headers.Set("Cross-Origin-Resource-Policy", "same-origin")
		if h.config.ReferrerPolicy != "" {
			headers.Set("Referrer-Policy", h.config.ReferrerPolicy)
		}
		if h.config.PermissionsPolicy != "" {
			headers.Set("Permissions-Policy", h.config.PermissionsPolicy)
		}
		if h.config.NoStore && !strings.HasPrefix(r.URL.Path, "/static/") {
			headers.Set("Cache-Control", "no-store")
		}
		if r.TLS != nil && h.config.HSTSMaxAge > 0 {
			headers.Set("Strict-Transport-Security",
				fmt.Sprintf("max-age=%d; includeSubDomains", h.config.HSTSMaxAge))
		}

		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware lets browsers cache /static/ for maxAge seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}
