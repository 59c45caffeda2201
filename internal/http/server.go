// Package http serves the expense list UI. Every browser session owns one
// controller; handlers translate requests into controller intents and answer
// with the re-rendered list, using HX-Trigger headers for notifications.
package http

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"expenseui/internal/backend"
	"expenseui/internal/cache"
	"expenseui/internal/controller"
	"expenseui/internal/log"
	"expenseui/internal/middleware/ratelimit"
	"expenseui/internal/middleware/security"
	"expenseui/internal/middleware/trace"
	"expenseui/internal/render"
	appweb "expenseui/web"
)

const (
	cacheSweepInterval     = time.Minute
	rateLimitSweepInterval = 5 * time.Minute
	readyTimeout           = 3 * time.Second
)

// Options wires the server to its collaborators.
type Options struct {
	Backend            backend.SessionBinder
	Renderer           *render.Renderer
	Categories         []string
	LoginURL           string
	Controller         controller.Options
	SessionMax         int
	SessionTTL         time.Duration
	RateLimitPerMinute int
	Logger             *log.Logger
}

type appMetrics struct {
	uptime        time.Time
	writes        int64
	authRedirects int64
	failures      int64
}

type Server struct {
	http.Server

	opts             Options
	logger           *log.Logger
	structured       *log.StructuredLogger
	renderer         *render.Renderer
	sessions         *SessionStore
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheManager     *cache.Manager
	appMetrics       *appMetrics
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Backend == nil {
		return nil, errors.New("http: backend is required")
	}
	if opts.Renderer == nil {
		return nil, errors.New("http: renderer is required")
	}
	if opts.LoginURL == "" {
		opts.LoginURL = "/login"
	}
	if opts.SessionMax <= 0 {
		opts.SessionMax = 1000
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		opts:             opts,
		logger:           logger,
		structured:       log.NewStructuredLogger(logger),
		renderer:         opts.Renderer,
		sessions:         NewSessionStore(opts.Backend, opts.Controller, opts.SessionMax, opts.SessionTTL, logger),
		rateLimiter:      ratelimit.NewLimiter(rlConfig),
		securityDetector: security.NewDetector(logger),
		cacheManager:     cache.NewManager(logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)
	s.cacheManager.Register(s.sessions.Cache())

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/{$}", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// UI partials
	mux.HandleFunc("/ui/expenses", s.handleExpenses)
	mux.HandleFunc("/ui/refresh", s.handleRefresh)
	mux.HandleFunc("/ui/filter", s.handleFilter)
	mux.HandleFunc("/ui/page/next", s.handleNextPage)
	mux.HandleFunc("/ui/page/prev", s.handlePrevPage)
	mux.HandleFunc("/ui/edit/cancel", s.handleCancelEdit)
	mux.HandleFunc("/ui/expenses/{id}/edit", s.handleEdit)
	mux.HandleFunc("/ui/expenses/{id}/delete", s.handleDelete)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)(mux)
	inspected := s.securityDetector.Middleware(true)(limited)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.traceMiddleware.Middleware(headers.Middleware(inspected)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Run drives the background sweepers until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.cacheManager.Run(ctx, cacheSweepInterval) })
	g.Go(func() error { return s.rateLimiter.Run(ctx, rateLimitSweepInterval) })
	return g.Wait()
}

// Sessions exposes the session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		TriggerErrorNotification("Too many requests, please slow down").
		BodyString("Rate limit exceeded. Please try again later.").
		Write(w)
}

func (s *Server) recordFailure() {
	atomic.AddInt64(&s.appMetrics.failures, 1)
}
