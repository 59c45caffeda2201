package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenseui/internal/core"
	"expenseui/internal/log"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)
	_, err = NewClient("/relative")
	assert.Error(t, err)
}

func TestAuthStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/status", r.URL.Path)
		ck, err := r.Cookie("session")
		if assert.NoError(t, err) {
			assert.Equal(t, "abc", ck.Value)
		}
		_, _ = io.WriteString(w, `{"is_logged_in": true, "username": "ada"}`)
	})

	st, err := c.WithCookies(&http.Cookie{Name: "session", Value: "abc"}).AuthStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, st.LoggedIn)
	assert.Equal(t, "ada", st.Username)
}

func TestAuthStatusServerErrorIsFetchFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.AuthStatus(context.Background())
	assert.True(t, errors.Is(err, core.ErrFetch))
}

func TestListExpensesOmitsCategoryForAll(t *testing.T) {
	var queries []map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query())
		_, _ = io.WriteString(w, `{
			"expenses": [{"id": 3, "description": "Taxi", "category": "Transport",
				"base_amount": 10, "tax_rate": 0.085, "amount_with_tax": 10.85, "is_recurring": false}],
			"current_page": 2, "total_pages": 3, "has_prev": true, "has_next": true}`)
	})

	p, err := c.ListExpenses(context.Background(), 2, core.FilterAll)
	require.NoError(t, err)
	require.Len(t, p.Records, 1)
	assert.Equal(t, int64(3), p.Records[0].ID)
	assert.True(t, p.Records[0].AmountWithTax.Equal(decimal.RequireFromString("10.85")))
	assert.Equal(t, core.PageState{CurrentPage: 2, TotalPages: 3, HasPrev: true, HasNext: true}, p.State)
	assert.Equal(t, 2, p.Requested)

	_, err = c.ListExpenses(context.Background(), 1, core.NewFilter("Food"))
	require.NoError(t, err)

	require.Len(t, queries, 2)
	assert.Equal(t, []string{"2"}, queries[0]["page"])
	_, present := queries[0]["category"]
	assert.False(t, present, "category must not be sent for the all filter")
	assert.Equal(t, []string{"Food"}, queries[1]["category"])
}

func TestListExpensesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   core.ErrorKind
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, core.KindFetch},
		{"unauthorized", http.StatusUnauthorized, ``, core.KindAuth},
		{"bad json", http.StatusOK, `{"expenses": [`, core.KindFetch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.ListExpenses(context.Background(), 1, core.FilterAll)
			assert.Equal(t, tt.kind, core.KindOf(err))
		})
	}
}

func TestListExpensesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = c.ListExpenses(context.Background(), 1, core.FilterAll)
	assert.Equal(t, core.KindFetch, core.KindOf(err))
}

func TestCreateAndUpdateSendDraft(t *testing.T) {
	var got []struct {
		method, path string
		body         map[string]any
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, struct {
			method, path string
			body         map[string]any
		}{r.Method, r.URL.Path, body})
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 9, "description": "Lunch", "category": "Food",
			"base_amount": 12.5, "tax_rate": 0.1, "amount_with_tax": 13.75, "is_recurring": true}`)
	})

	d := core.Draft{
		Description: "Lunch",
		Category:    "Food",
		BaseAmount:  decimal.RequireFromString("12.5"),
		TaxRate:     decimal.RequireFromString("0.1"),
		IsRecurring: true,
	}
	rec, err := c.CreateExpense(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(9), rec.ID)

	_, err = c.UpdateExpense(context.Background(), 9, d)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, http.MethodPost, got[0].method)
	assert.Equal(t, "/api/expenses", got[0].path)
	assert.Equal(t, http.MethodPut, got[1].method)
	assert.Equal(t, "/api/expenses/9", got[1].path)
	for _, g := range got {
		assert.Equal(t, "Lunch", g.body["description"])
		assert.Equal(t, "Food", g.body["category"])
		assert.Equal(t, true, g.body["is_recurring"])
		assert.Contains(t, g.body, "base_amount")
		assert.Contains(t, g.body, "tax_rate")
		assert.NotContains(t, g.body, "amount_with_tax")
	}
}

func TestWriteRejectionKeepsServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": "Invalid category"}`)
	})
	_, err := c.CreateExpense(context.Background(), core.Draft{Description: "x", Category: "Nope"})
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Equal(t, "Invalid category", core.UserMessage(err))
}

func TestWriteRejectionWithoutBodyUsesStatusText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := c.DeleteExpense(context.Background(), 4)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Equal(t, "Not Found", core.UserMessage(err))
}

func TestDeleteAcceptsEmptySuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/expenses/4", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	assert.NoError(t, c.DeleteExpense(context.Background(), 4))
}

func TestWriteWithUndecodableBodyIsAcceptedAndLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "<html>created</html>")
	}))
	t.Cleanup(srv.Close)

	var buf bytes.Buffer
	logger := log.New(log.Config{Component: "test", Handler: slog.NewTextHandler(&buf, nil)})
	c, err := NewClient(srv.URL, WithLogger(logger))
	require.NoError(t, err)

	rec, err := c.CreateExpense(context.Background(), core.Draft{Description: "x", Category: "Food"})
	require.NoError(t, err, "a 2xx write is stored even when its body is unusable")
	assert.Zero(t, rec.ID)

	line := buf.String()
	assert.Contains(t, line, "Ignoring undecodable write response")
	assert.Contains(t, line, "status_code=201")
	assert.Equal(t, 1, strings.Count(line, "component="))
}
