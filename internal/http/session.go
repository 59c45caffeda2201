package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"expenseui/internal/backend"
	"expenseui/internal/cache"
	"expenseui/internal/controller"
	"expenseui/internal/log"
)

// SessionCookieName identifies a browser's list controller.
const SessionCookieName = "expense_ui_session"

// SessionStore maps browser sessions to their controllers. Idle sessions
// expire after the TTL; the least recently used one is dropped when the
// store is full.
type SessionStore struct {
	cache   *cache.LRUCache[*controller.Controller]
	binder  backend.SessionBinder
	opts    controller.Options
	ttl     time.Duration
	logger  *log.Logger
	created atomic.Int64
}

// NewSessionStore creates a store holding at most max sessions.
func NewSessionStore(binder backend.SessionBinder, opts controller.Options, max int, ttl time.Duration, logger *log.Logger) *SessionStore {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentSession)
	s := &SessionStore{
		binder: binder,
		opts:   opts,
		ttl:    ttl,
		logger: logger,
	}
	s.cache = cache.NewLRUCache[*controller.Controller](max, ttl,
		cache.WithSlidingExpiry[*controller.Controller](),
		cache.WithEvictCallback(func(id string, _ *controller.Controller) {
			logger.Debug("Session evicted", log.FieldSessionID, id)
		}),
	)
	return s
}

// Get returns the caller's controller, creating a session (and setting its
// cookie) when the request carries none or an unknown one.
func (s *SessionStore) Get(w http.ResponseWriter, r *http.Request) (string, *controller.Controller) {
	if ck, err := r.Cookie(SessionCookieName); err == nil {
		if _, perr := uuid.Parse(ck.Value); perr == nil {
			if ctrl, ok := s.cache.Get(ck.Value); ok {
				return ck.Value, ctrl
			}
		}
	}

	id := uuid.NewString()
	opts := s.opts
	base := opts.Logger
	if base == nil {
		base = s.logger
	}
	opts.Logger = base.With(log.FieldSessionID, id)
	ctrl := controller.New(s.binder(r.Cookies()), opts)
	s.cache.Set(id, ctrl)
	s.created.Add(1)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.DebugContext(r.Context(), "Session created", log.FieldSessionID, id)
	return id, ctrl
}

// Evict forgets a session. The next request from that browser starts over.
func (s *SessionStore) Evict(id string) {
	s.cache.Delete(id)
}

// Size returns the number of live sessions.
func (s *SessionStore) Size() int {
	return s.cache.Size()
}

// Created returns how many sessions were started.
func (s *SessionStore) Created() int64 {
	return s.created.Load()
}

// Cache exposes the underlying cache so it can be swept by a cache.Manager.
func (s *SessionStore) Cache() cache.Cleaner {
	return s.cache
}
