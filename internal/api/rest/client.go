// Package rest implements the backend ports over the expenses HTTP API.
//
// Every failure leaving this package is a *core.Error: transport and decode
// problems become fetch failures, 401/403 become auth failures and rejected
// writes become validation failures carrying the server's message verbatim.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expenseui/internal/api"
	"expenseui/internal/core"
	"expenseui/internal/log"
)

const (
	// DefaultBasePath is where the expenses API is mounted.
	DefaultBasePath = "/api"

	maxBodyBytes = 1 << 20
)

var errUnexpectedStatus = errors.New("unexpected http status code")

// Client manages all endpoints of the expenses API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	cookies    []*http.Cookie
	timeout    time.Duration
	logger     *log.Logger
}

var _ api.Backend = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every single request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger for responses the client tolerates but cannot use.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentBackend)
		}
	}
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. "http://localhost:5000").
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", baseURL)
	}
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    u,
		timeout:    10 * time.Second,
		logger:     log.FromContext(context.Background()).WithComponent(log.ComponentBackend),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithCookies returns a copy of c that forwards the given session cookies on
// every request. The copy shares the underlying http.Client.
func (c *Client) WithCookies(cookies ...*http.Cookie) *Client {
	cp := *c
	cp.cookies = append([]*http.Cookie(nil), cookies...)
	return &cp
}

// AuthStatus calls GET /api/auth/status.
func (c *Client) AuthStatus(ctx context.Context) (api.SessionStatus, error) {
	var out authStatusResponse
	status, body, err := c.do(ctx, http.MethodGet, c.endpoint("auth", "status"), nil)
	if err != nil {
		return api.SessionStatus{}, core.FetchFailure("", fmt.Errorf("auth status: %w", err))
	}
	if status != http.StatusOK {
		return api.SessionStatus{}, statusError("auth status", status, body)
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return api.SessionStatus{}, core.FetchFailure("", fmt.Errorf("decode auth status: %w", err))
	}
	return api.SessionStatus{LoggedIn: out.IsLoggedIn, Username: out.Username}, nil
}

// ListExpenses calls GET /api/expenses?page=<n>[&category=<c>].
func (c *Client) ListExpenses(ctx context.Context, page int, filter core.Filter) (core.Page, error) {
	u := c.endpoint("expenses")
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	filter.Apply(q)
	u.RawQuery = q.Encode()

	status, body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return core.Page{}, core.FetchFailure("", fmt.Errorf("list expenses (page=%d): %w", page, err))
	}
	if status != http.StatusOK {
		return core.Page{}, statusError("list expenses", status, body)
	}
	var out listResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return core.Page{}, core.FetchFailure("", fmt.Errorf("decode expenses: %w", err))
	}
	return out.toPage(page), nil
}

// CreateExpense calls POST /api/expenses.
func (c *Client) CreateExpense(ctx context.Context, d core.Draft) (core.ExpenseRecord, error) {
	return c.write(ctx, http.MethodPost, c.endpoint("expenses"), d)
}

// UpdateExpense calls PUT /api/expenses/:id.
func (c *Client) UpdateExpense(ctx context.Context, id int64, d core.Draft) (core.ExpenseRecord, error) {
	return c.write(ctx, http.MethodPut, c.endpoint("expenses", strconv.FormatInt(id, 10)), d)
}

// DeleteExpense calls DELETE /api/expenses/:id.
func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	status, body, err := c.do(ctx, http.MethodDelete, c.endpoint("expenses", strconv.FormatInt(id, 10)), nil)
	if err != nil {
		return core.FetchFailure("Network error, please retry", fmt.Errorf("delete expense %d: %w", id, err))
	}
	if status < 200 || status > 299 {
		return writeError("delete expense", status, body)
	}
	return nil
}

func (c *Client) write(ctx context.Context, method string, u *url.URL, d core.Draft) (core.ExpenseRecord, error) {
	payload, err := json.Marshal(draftFromCore(d))
	if err != nil {
		return core.ExpenseRecord{}, core.ValidationFailure("", fmt.Errorf("encode expense: %w", err))
	}
	status, body, err := c.do(ctx, method, u, payload)
	if err != nil {
		return core.ExpenseRecord{}, core.FetchFailure("Network error, please retry", fmt.Errorf("%s %s: %w", method, u.Path, err))
	}
	if status < 200 || status > 299 {
		return core.ExpenseRecord{}, writeError(method+" "+u.Path, status, body)
	}
	// The write is stored once the status is 2xx. The echoed record is
	// optional: some backends answer with an empty or minimal body, and the
	// list is refreshed afterwards either way.
	var out expenseJSON
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			c.logger.WarnContext(ctx, "Ignoring undecodable write response",
				log.FieldMethod, method,
				log.FieldPath, u.Path,
				log.FieldStatusCode, status,
				log.FieldError, err.Error())
			return core.ExpenseRecord{}, nil
		}
	}
	return out.toCore(), nil
}

func (c *Client) endpoint(parts ...string) *url.URL {
	elems := append([]string{DefaultBasePath}, parts...)
	return c.baseURL.JoinPath(elems...)
}

// do performs one request and returns status and a bounded body.
func (c *Client) do(ctx context.Context, method string, u *url.URL, payload []byte) (int, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// statusError classifies a non-success status on a read.
func statusError(op string, status int, body []byte) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return core.AuthFailure("", fmt.Errorf("%s: %w %d", op, errUnexpectedStatus, status))
	}
	return core.FetchFailure(serverMessage(body), fmt.Errorf("%s: %w %d", op, errUnexpectedStatus, status))
}

// writeError classifies a non-success status on a write. The server message
// is kept verbatim so the user sees exactly what the backend rejected.
func writeError(op string, status int, body []byte) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return core.AuthFailure("", fmt.Errorf("%s: %w %d", op, errUnexpectedStatus, status))
	}
	msg := serverMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return core.ValidationFailure(msg, fmt.Errorf("%s: %w %d", op, errUnexpectedStatus, status))
}

func serverMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Error
}
