package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetector_Inspect(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		target   string
		agent    string
		wantRule string
	}{
		{"clean", http.MethodGet, "/ui/expenses", "Mozilla/5.0", ""},
		{"path scan", http.MethodGet, "/.env", "Mozilla/5.0", "path_scan"},
		{"query injection", http.MethodGet, "/?category=%3Cscript%3E", "Mozilla/5.0", "query_injection"},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", "scanner_agent"},
		{"trace method", "TRACE", "/", "Mozilla/5.0", "unusual_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(nil)
			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.Header.Set("User-Agent", tt.agent)

			rule, hit := d.Inspect(req)
			assert.Equal(t, tt.wantRule != "", hit)
			assert.Equal(t, tt.wantRule, rule)
		})
	}
}

func TestDetector_MetricsPerRule(t *testing.T) {
	d := NewDetector(nil)
	d.Inspect(httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	d.Inspect(httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	d.Inspect(httptest.NewRequest(http.MethodGet, "/", nil))

	m := d.GetMetrics()
	assert.Equal(t, int64(2), m.SuspiciousRequests)
	assert.Equal(t, int64(2), m.ByRule["path_scan"])
}

func TestDetector_ExtractClientIP(t *testing.T) {
	d := NewDetector(nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")
	assert.Equal(t, "203.0.113.7", d.ExtractClientIP(req), "trusted proxy forwards the client")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "198.51.100.1", d.ExtractClientIP(req), "untrusted peers cannot spoof")
}

func TestDetector_MiddlewareBlocks(t *testing.T) {
	d := NewDetector(nil)
	served := false
	h := d.Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { served = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/etc/passwd", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, served)
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "HSTS only over TLS")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	assert.Empty(t, rec.Header().Get("Cache-Control"))
}

func TestContentSecurityPolicyScriptSources(t *testing.T) {
	cfg := DefaultHeadersConfig()
	assert.Contains(t, cfg.ContentSecurityPolicy(), "script-src 'self' https://unpkg.com;")

	cfg.ScriptSources = nil
	csp := cfg.ContentSecurityPolicy()
	assert.Contains(t, csp, "script-src 'self';")
	assert.NotContains(t, csp, "unsafe-eval")
}
