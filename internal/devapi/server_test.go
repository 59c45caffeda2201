package devapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenseui/internal/api"
	"expenseui/internal/api/memory"
	"expenseui/internal/api/rest"
	"expenseui/internal/controller"
	"expenseui/internal/core"
	"expenseui/internal/log"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Component: "test", Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newAPI(t *testing.T, store *memory.Store) (*httptest.Server, *rest.Client) {
	t.Helper()
	srv := httptest.NewServer(NewHandler(store, quietLogger()))
	t.Cleanup(srv.Close)
	c, err := rest.NewClient(srv.URL)
	require.NoError(t, err)
	return srv, c
}

func draft(desc, cat, base, rate string) core.Draft {
	return core.Draft{
		Description: desc,
		Category:    cat,
		BaseAmount:  decimal.RequireFromString(base),
		TaxRate:     decimal.RequireFromString(rate),
	}
}

func TestAuthStatus(t *testing.T) {
	store := memory.New([]string{"Food"}, 10)
	_, c := newAPI(t, store)
	ctx := context.Background()

	st, err := c.AuthStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, api.SessionStatus{LoggedIn: true, Username: "demo"}, st)

	store.SetSession(api.SessionStatus{LoggedIn: false, Username: "ignored"})
	st, err = c.AuthStatus(ctx)
	require.NoError(t, err)
	assert.False(t, st.LoggedIn)
	assert.Empty(t, st.Username)

	_, err = c.ListExpenses(ctx, 1, core.FilterAll)
	assert.Equal(t, core.KindAuth, core.KindOf(err))
}

func TestRoundTrip(t *testing.T) {
	store := memory.New([]string{"Food", "Transport"}, 2)
	_, c := newAPI(t, store)
	ctx := context.Background()

	rec, err := c.CreateExpense(ctx, draft("Lunch", "Food", "10", "0.2"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.True(t, rec.AmountWithTax.Equal(decimal.NewFromInt(12)))

	_, err = c.CreateExpense(ctx, draft("Bus", "Transport", "2", "0"))
	require.NoError(t, err)
	_, err = c.CreateExpense(ctx, draft("Dinner", "Food", "30", "0"))
	require.NoError(t, err)

	p, err := c.ListExpenses(ctx, 1, core.FilterAll)
	require.NoError(t, err)
	assert.Equal(t, core.NewPageState(1, 2), p.State)
	require.Len(t, p.Records, 2)
	assert.Equal(t, "Dinner", p.Records[0].Description)

	p, err = c.ListExpenses(ctx, 1, core.NewFilter("Food"))
	require.NoError(t, err)
	assert.Len(t, p.Records, 2)

	upd, err := c.UpdateExpense(ctx, 1, draft("Lunch out", "Food", "20", "0"))
	require.NoError(t, err)
	assert.Equal(t, "Lunch out", upd.Description)

	require.NoError(t, c.DeleteExpense(ctx, 2))
	assert.Equal(t, 2, store.Len())

	err = c.DeleteExpense(ctx, 2)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Equal(t, "Expense not found", core.UserMessage(err))
}

func TestPagePastTheEndIsEmpty(t *testing.T) {
	store := memory.New([]string{"Food"}, 2)
	_, c := newAPI(t, store)
	ctx := context.Background()
	_, err := c.CreateExpense(ctx, draft("Only", "Food", "1", "0"))
	require.NoError(t, err)

	p, err := c.ListExpenses(ctx, 3, core.FilterAll)
	require.NoError(t, err)
	assert.True(t, p.OutOfRange())
}

func TestWriteRejections(t *testing.T) {
	store := memory.New([]string{"Food"}, 10)
	srv, c := newAPI(t, store)
	ctx := context.Background()

	_, err := c.CreateExpense(ctx, draft("Lunch", "Toys", "1", "0"))
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Equal(t, "Invalid category", core.UserMessage(err))

	resp, err := http.Post(srv.URL+"/api/expenses", "application/json", strings.NewReader(`{"description":"x","base_amount":"1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Missing required fields: category, tax_rate", body.Error)

	resp2, err := http.Post(srv.URL+"/api/expenses", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	assert.Equal(t, 0, store.Len())
}

func TestControllerAgainstDevAPI(t *testing.T) {
	store := memory.New([]string{"Food"}, 1)
	_, c := newAPI(t, store)
	ctx := context.Background()

	ctrl := controller.New(c, controller.Options{Logger: quietLogger()})
	require.NoError(t, ctrl.Bootstrap(ctx))
	assert.Equal(t, "demo", ctrl.Username())

	for _, d := range []string{"a", "b"} {
		_, err := ctrl.Submit(ctx, core.DraftInput{Description: d, Category: "Food", BaseAmount: "1", TaxRate: "0"})
		require.NoError(t, err)
	}
	require.NoError(t, ctrl.NextPage(ctx))
	assert.Equal(t, 2, ctrl.State().CurrentPage)

	// Deleting the only row on the last page moves back one page.
	only := ctrl.Records()[0].ID
	require.NoError(t, ctrl.Delete(ctx, only, true))
	assert.Equal(t, core.NewPageState(1, 1), ctrl.State())
}
