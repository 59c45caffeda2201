package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"expenseui/internal/log"
)

// Rule flags a request when Match returns true.
type Rule struct {
	Name  string
	Match func(r *http.Request) bool
}

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	ByRule             map[string]int64
}

// Detector flags requests that look like scans or attacks and resolves the
// client address behind trusted proxies.
type Detector struct {
	rules          []Rule
	trustedProxies []*net.IPNet
	logger         *log.Logger

	suspicious int64
	mu         sync.Mutex
	byRule     map[string]int64
}

// NewDetector creates a detector with the default rules and private
// networks as trusted proxies.
func NewDetector(logger *log.Logger) *Detector {
	d := &Detector{
		rules:  DefaultRules(),
		byRule: make(map[string]int64),
	}
	if logger != nil {
		d.logger = logger.WithComponent(log.ComponentSecurity)
	}
	for _, cidr := range []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		if err := d.AddTrustedProxy(cidr); err != nil {
			panic(err)
		}
	}
	return d
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// DefaultRules returns the built-in scan patterns.
func DefaultRules() []Rule {
	scanned := []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin", "admin.php",
		"config.php", ".git", ".ssh", "etc/passwd", "cmd.exe",
	}
	injections := []string{"<script", "javascript:", "union select", "eval("}
	scanners := []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}

	return []Rule{
		{Name: "path_scan", Match: func(r *http.Request) bool {
			return containsAny(strings.ToLower(r.URL.Path), scanned)
		}},
		{Name: "query_injection", Match: func(r *http.Request) bool {
			q, err := url.QueryUnescape(r.URL.RawQuery)
			if err != nil {
				q = r.URL.RawQuery
			}
			return containsAny(strings.ToLower(q), injections)
		}},
		{Name: "scanner_agent", Match: func(r *http.Request) bool {
			return containsAny(strings.ToLower(r.Header.Get("User-Agent")), scanners)
		}},
		{Name: "unusual_method", Match: func(r *http.Request) bool {
			switch r.Method {
			case "TRACE", "TRACK", "DEBUG", "CONNECT":
				return true
			}
			return false
		}},
		{Name: "long_url", Match: func(r *http.Request) bool {
			return len(r.URL.String()) > 2048
		}},
		{Name: "proxy_chain", Match: func(r *http.Request) bool {
			return strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5
		}},
	}
}

// Inspect returns the name of the first matching rule.
func (d *Detector) Inspect(r *http.Request) (string, bool) {
	for _, rule := range d.rules {
		if rule.Match(r) {
			atomic.AddInt64(&d.suspicious, 1)
			d.mu.Lock()
			d.byRule[rule.Name]++
			d.mu.Unlock()
			return rule.Name, true
		}
	}
	return "", false
}

// Middleware logs suspicious requests. When block is set they are answered
// with 400 instead of being served.
func (d *Detector) Middleware(block bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, hit := d.Inspect(r)
			if hit {
				if d.logger != nil {
					d.logger.WarnContext(r.Context(), "Suspicious request",
						"rule", rule,
						log.FieldMethod, r.Method,
						log.FieldPath, r.URL.Path,
						log.FieldClientIP, d.ExtractClientIP(r),
						log.FieldUserAgent, r.Header.Get("User-Agent"))
				}
				if block {
					http.Error(w, "Bad request", http.StatusBadRequest)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ExtractClientIP extracts the real client IP, validating forwarded headers
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	// X-Forwarded-For can contain multiple IPs, the first one is the client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	d.mu.Lock()
	defer d.mu.Unlock()
	byRule := make(map[string]int64, len(d.byRule))
	for k, v := range d.byRule {
		byRule[k] = v
	}
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.suspicious),
		ByRule:             byRule,
	}
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}
