package backend

import (
	"context"
	"net/http"
	"time"

	"expenseui/internal/api"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// SessionBinder returns the backend a single browser session talks to. The
// rest backend forwards the browser's session cookies; the memory backend
// ignores them and shares one store.
type SessionBinder func(cookies []*http.Cookie) api.Backend

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Type       BackendType
	ForSession SessionBinder
	// Categories are the names the form offers and the backend accepts.
	Categories []string
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// REST specific
	BaseURL        string
	SessionCookie  string
	RequestTimeout time.Duration

	// Memory specific
	DataDirectory string
	Categories    []string
	PageSize      int
}

// BackendType represents the type of backend
type BackendType string

const (
	RESTBackend   BackendType = "rest"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RESTBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
