// Package render turns controller state into display models and HTML.
//
// Project and NewPageData are pure: they only format values. Escaping
// happens once, when html/template executes the embedded templates.
package render

import (
	"fmt"
	"strconv"

	"expenseui/internal/controller"
	"expenseui/internal/core"
)

// EmptyMessage is the single placeholder row of an empty table.
const EmptyMessage = "No expenses found."

// Row is one table row with every cell already formatted.
type Row struct {
	ID            int64
	Description   string
	Category      string
	BaseAmount    string
	TaxRate       string
	AmountWithTax string
	Recurring     string
	Editing       bool
}

// EditIntent is the intent posted by the row's edit button.
func (r Row) EditIntent() string { return controller.IntentEdit.String() }

// DeleteIntent is the intent posted by the row's delete button.
func (r Row) DeleteIntent() string { return controller.IntentDelete.String() }

// EditURL targets the edit intent for this row.
func (r Row) EditURL() string { return fmt.Sprintf("/ui/expenses/%d/edit", r.ID) }

// DeleteURL targets the delete intent for this row.
func (r Row) DeleteURL() string { return fmt.Sprintf("/ui/expenses/%d/delete", r.ID) }

// View is the projection of one applied page.
type View struct {
	Rows         []Row
	Empty        bool
	EmptyMessage string
	CurrentPage  int
	TotalPages   int
	PageLabel    string
	PrevDisabled bool
	NextDisabled bool
}

// Project formats records and pagination state for display.
func Project(records []core.ExpenseRecord, state core.PageState) View {
	v := View{
		Rows:         make([]Row, 0, len(records)),
		Empty:        len(records) == 0,
		EmptyMessage: EmptyMessage,
		CurrentPage:  state.CurrentPage,
		TotalPages:   state.TotalPages,
		PageLabel:    fmt.Sprintf("Page %d of %d", state.CurrentPage, state.TotalPages),
		PrevDisabled: !state.HasPrev,
		NextDisabled: !state.HasNext,
	}
	for _, rec := range records {
		v.Rows = append(v.Rows, Row{
			ID:            rec.ID,
			Description:   rec.Description,
			Category:      rec.Category,
			BaseAmount:    core.FormatCurrency(rec.BaseAmount),
			TaxRate:       core.FormatPercent(rec.TaxRate),
			AmountWithTax: core.FormatCurrency(rec.AmountWithTax),
			Recurring:     core.FormatYesNo(rec.IsRecurring),
		})
	}
	return v
}

// Option is one entry of a category select.
type Option struct {
	Value    string
	Selected bool
}

// FormView is the shared create/update form.
type FormView struct {
	Title               string
	ShowCancel          bool
	Editing             bool
	RecordID            string
	Description         string
	BaseAmount          string
	TaxRate             string
	IsRecurring         bool
	PlaceholderSelected bool
	Categories          []Option
}

// ProjectForm fills the form from the controller's form state.
func ProjectForm(f controller.Form, categories []string) FormView {
	fv := FormView{
		Title:               f.Title(),
		ShowCancel:          f.ShowCancel(),
		Editing:             f.Mode == controller.ModeUpdate,
		Description:         f.Values.Description,
		BaseAmount:          f.Values.BaseAmount,
		TaxRate:             f.Values.TaxRate,
		IsRecurring:         f.Values.IsRecurring,
		PlaceholderSelected: f.Values.Category == "",
		Categories:          options(categories, f.Values.Category),
	}
	if fv.Editing {
		fv.RecordID = strconv.FormatInt(f.RecordID, 10)
	}
	return fv
}

// PageData is everything the page templates read.
type PageData struct {
	// OOB marks a fragment rendered next to the one htmx targets, so htmx
	// swaps it into place by id.
	OOB bool


	Username          string
	Filter            string
	FilterAllSelected bool
	FilterOptions     []Option
	View              View
	Form              FormView
}

// NewPageData projects a controller snapshot.
func NewPageData(s controller.Snapshot, categories []string) PageData {
	view := Project(s.Records, s.State)
	if id, ok := s.Edit.RecordID(); ok {
		for i := range view.Rows {
			view.Rows[i].Editing = view.Rows[i].ID == id
		}
	}
	return PageData{
		Username:          s.Username,
		Filter:            s.Filter.Category,
		FilterAllSelected: s.Filter.IsAll(),
		FilterOptions:     options(categories, s.Filter.Category),
		View:              view,
		Form:              ProjectForm(s.Form, categories),
	}
}

// options lists categories, keeping a selected value the list does not know
// so an edited record never silently changes category.
func options(categories []string, selected string) []Option {
	out := make([]Option, 0, len(categories)+1)
	found := false
	for _, c := range categories {
		sel := c == selected
		found = found || sel
		out = append(out, Option{Value: c, Selected: sel})
	}
	if selected != "" && !found {
		out = append(out, Option{Value: selected, Selected: true})
	}
	return out
}
