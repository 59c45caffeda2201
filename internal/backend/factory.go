package backend

import (
	"context"
	"fmt"
	"net/http"

	"expenseui/internal/api"
	"expenseui/internal/api/memory"
	"expenseui/internal/api/rest"
	"expenseui/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case RESTBackend:
		return f.createRESTBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createRESTBackend(config Config) (*BackendResult, error) {
	opts := []rest.Option{rest.WithLogger(f.logger)}
	if config.RequestTimeout > 0 {
		opts = append(opts, rest.WithTimeout(config.RequestTimeout))
	}
	client, err := rest.NewClient(config.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize REST client: %w", err)
	}

	cookieName := config.SessionCookie
	f.logger.Info("Initialized REST backend",
		"base_url", config.BaseURL,
		"session_cookie", cookieName)

	return &BackendResult{
		Type: RESTBackend,
		ForSession: func(cookies []*http.Cookie) api.Backend {
			return client.WithCookies(selectCookies(cookies, cookieName)...)
		},
		Categories: config.Categories,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store := memory.Open(dataDir, config.Categories, config.PageSize)

	f.logger.Info("Initialized memory backend",
		"data_directory", dataDir,
		"categories", len(store.Categories()))

	return &BackendResult{
		Type:       MemoryBackend,
		ForSession: func([]*http.Cookie) api.Backend { return store },
		Categories: store.Categories(),
	}, nil
}

// selectCookies keeps the named cookie; an empty name forwards everything.
func selectCookies(cookies []*http.Cookie, name string) []*http.Cookie {
	if name == "" {
		return cookies
	}
	for _, c := range cookies {
		if c.Name == name {
			return []*http.Cookie{{Name: c.Name, Value: c.Value}}
		}
	}
	return nil
}
