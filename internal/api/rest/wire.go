package rest

import (
	"github.com/shopspring/decimal"

	"expenseui/internal/core"
)

// authStatusResponse is the body of GET /api/auth/status.
type authStatusResponse struct {
	IsLoggedIn bool   `json:"is_logged_in"`
	Username   string `json:"username,omitempty"`
}

// expenseJSON is one expense as the backend serialises it.
type expenseJSON struct {
	ID            int64           `json:"id"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	AmountWithTax decimal.Decimal `json:"amount_with_tax"`
	IsRecurring   bool            `json:"is_recurring"`
}

// listResponse is the body of GET /api/expenses.
type listResponse struct {
	Expenses    []expenseJSON `json:"expenses"`
	CurrentPage int           `json:"current_page"`
	TotalPages  int           `json:"total_pages"`
	HasPrev     bool          `json:"has_prev"`
	HasNext     bool          `json:"has_next"`
}

// draftJSON is the body of POST /api/expenses and PUT /api/expenses/:id.
type draftJSON struct {
	Description string          `json:"description"`
	Category    string          `json:"category"`
	BaseAmount  decimal.Decimal `json:"base_amount"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	IsRecurring bool            `json:"is_recurring"`
}

// errorResponse is the body of a rejected write.
type errorResponse struct {
	Error string `json:"error"`
}

func (e expenseJSON) toCore() core.ExpenseRecord {
	return core.ExpenseRecord{
		ID:            e.ID,
		Description:   e.Description,
		Category:      e.Category,
		BaseAmount:    e.BaseAmount,
		TaxRate:       e.TaxRate,
		AmountWithTax: e.AmountWithTax,
		IsRecurring:   e.IsRecurring,
	}
}

func draftFromCore(d core.Draft) draftJSON {
	return draftJSON{
		Description: d.Description,
		Category:    d.Category,
		BaseAmount:  d.BaseAmount,
		TaxRate:     d.TaxRate,
		IsRecurring: d.IsRecurring,
	}
}

// toPage converts a list response for the requested page into a core.Page.
// The navigation flags are derived from the clamped page numbers, which agree
// with has_prev/has_next whenever the backend is consistent.
func (l listResponse) toPage(requested int) core.Page {
	records := make([]core.ExpenseRecord, 0, len(l.Expenses))
	for _, e := range l.Expenses {
		records = append(records, e.toCore())
	}
	current := l.CurrentPage
	if current == 0 {
		current = requested
	}
	return core.Page{
		Records:   records,
		State:     core.NewPageState(current, l.TotalPages),
		Requested: requested,
	}
}

// ListBody builds the wire body for a listing; the development API uses it
// so both sides share one JSON shape.
func ListBody(records []core.ExpenseRecord, page, pages int, hasPrev, hasNext bool) any {
	out := listResponse{
		Expenses:    make([]expenseJSON, 0, len(records)),
		CurrentPage: page,
		TotalPages:  pages,
		HasPrev:     hasPrev,
		HasNext:     hasNext,
	}
	for _, r := range records {
		out.Expenses = append(out.Expenses, recordJSON(r))
	}
	return out
}

// RecordBody builds the wire body for a single record.
func RecordBody(r core.ExpenseRecord) any {
	return recordJSON(r)
}

// AuthBody builds the wire body for the session status endpoint.
func AuthBody(loggedIn bool, username string) any {
	if !loggedIn {
		username = ""
	}
	return authStatusResponse{IsLoggedIn: loggedIn, Username: username}
}

// ErrorBody builds the wire body of a rejected request.
func ErrorBody(msg string) any {
	return errorResponse{Error: msg}
}

func recordJSON(r core.ExpenseRecord) expenseJSON {
	return expenseJSON{
		ID:            r.ID,
		Description:   r.Description,
		Category:      r.Category,
		BaseAmount:    r.BaseAmount,
		TaxRate:       r.TaxRate,
		AmountWithTax: r.AmountWithTax,
		IsRecurring:   r.IsRecurring,
	}
}
