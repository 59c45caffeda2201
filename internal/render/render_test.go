package render

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenseui/internal/controller"
	"expenseui/internal/core"
	"expenseui/web"
)

func record(id int64, desc, cat, base, rate, total string, recurring bool) core.ExpenseRecord {
	return core.ExpenseRecord{
		ID:            id,
		Description:   desc,
		Category:      cat,
		BaseAmount:    decimal.RequireFromString(base),
		TaxRate:       decimal.RequireFromString(rate),
		AmountWithTax: decimal.RequireFromString(total),
		IsRecurring:   recurring,
	}
}

func TestProject_FormatsCells(t *testing.T) {
	v := Project([]core.ExpenseRecord{
		record(1, "Laptop", "Other", "1234.5", "0.085", "1339.43", true),
		record(2, "Bus", "Transport", "2", "0", "2", false),
	}, core.NewPageState(2, 3))

	require.Len(t, v.Rows, 2)
	assert.Equal(t, "$1234.50", v.Rows[0].BaseAmount)
	assert.Equal(t, "8.5%", v.Rows[0].TaxRate)
	assert.Equal(t, "$1339.43", v.Rows[0].AmountWithTax)
	assert.Equal(t, "Yes", v.Rows[0].Recurring)
	assert.Equal(t, "$2.00", v.Rows[1].BaseAmount)
	assert.Equal(t, "0.0%", v.Rows[1].TaxRate)
	assert.Equal(t, "No", v.Rows[1].Recurring)

	assert.Equal(t, "Page 2 of 3", v.PageLabel)
	assert.False(t, v.PrevDisabled)
	assert.False(t, v.NextDisabled)
	assert.False(t, v.Empty)
}

func TestProject_Empty(t *testing.T) {
	v := Project(nil, core.InitialPageState())

	assert.True(t, v.Empty)
	assert.Empty(t, v.Rows)
	assert.Equal(t, EmptyMessage, v.EmptyMessage)
	assert.Equal(t, "Page 1 of 1", v.PageLabel)
	assert.True(t, v.PrevDisabled)
	assert.True(t, v.NextDisabled)
}

func TestRow_Intents(t *testing.T) {
	r := Row{ID: 42}
	assert.Equal(t, "edit", r.EditIntent())
	assert.Equal(t, "delete", r.DeleteIntent())
	assert.Equal(t, "/ui/expenses/42/edit", r.EditURL())
	assert.Equal(t, "/ui/expenses/42/delete", r.DeleteURL())
}

func TestProjectForm(t *testing.T) {
	cats := []string{"Food", "Transport"}

	t.Run("pristine", func(t *testing.T) {
		fv := ProjectForm(controller.PristineForm(), cats)
		assert.Equal(t, "Add New Expense", fv.Title)
		assert.False(t, fv.ShowCancel)
		assert.True(t, fv.PlaceholderSelected)
		assert.Empty(t, fv.RecordID)
		for _, o := range fv.Categories {
			assert.False(t, o.Selected)
		}
	})

	t.Run("editing", func(t *testing.T) {
		f := controller.Form{
			Mode:     controller.ModeUpdate,
			RecordID: 7,
			Values:   core.DraftInput{Description: "Taxi", Category: "Transport", BaseAmount: "12", TaxRate: "0.1"},
		}
		fv := ProjectForm(f, cats)
		assert.Equal(t, "Edit Expense", fv.Title)
		assert.True(t, fv.ShowCancel)
		assert.Equal(t, "7", fv.RecordID)
		assert.False(t, fv.PlaceholderSelected)
		assert.Equal(t, []Option{{Value: "Food"}, {Value: "Transport", Selected: true}}, fv.Categories)
	})

	t.Run("unknown category is kept", func(t *testing.T) {
		f := controller.Form{Mode: controller.ModeUpdate, Values: core.DraftInput{Category: "Legacy"}}
		fv := ProjectForm(f, cats)
		require.Len(t, fv.Categories, 3)
		assert.Equal(t, Option{Value: "Legacy", Selected: true}, fv.Categories[2])
	})
}

func TestNewPageData_MarksEditedRow(t *testing.T) {
	rec := record(5, "Rent", "Other", "900", "0", "900", true)
	snap := controller.Snapshot{
		Username: "alice",
		Filter:   core.NewFilter("Other"),
		State:    core.NewPageState(1, 1),
		Records:  []core.ExpenseRecord{rec, record(6, "Gym", "Other", "30", "0", "30", true)},
		Edit:     controller.Editing(5, core.Draft{}),
	}

	data := NewPageData(snap, []string{"Food", "Other"})
	assert.Equal(t, "alice", data.Username)
	assert.False(t, data.FilterAllSelected)
	assert.True(t, data.View.Rows[0].Editing)
	assert.False(t, data.View.Rows[1].Editing)
	assert.Equal(t, []Option{{Value: "Food"}, {Value: "Other", Selected: true}}, data.FilterOptions)
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(web.TemplatesFS)
	require.NoError(t, err)
	return r
}

func TestRenderer_EscapesUserContent(t *testing.T) {
	r := newRenderer(t)
	snap := controller.Snapshot{
		Username: `<b>mallory</b>`,
		State:    core.NewPageState(1, 1),
		Records:  []core.ExpenseRecord{record(1, "<script>alert(1)</script>", `"><img src=x>`, "1", "0", "1", false)},
		Form:     controller.PristineForm(),
	}

	html, err := r.RenderString(PageTemplate, NewPageData(snap, []string{"Food"}))
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, html, `<img src=x>`)
	assert.NotContains(t, html, "<b>mallory</b>")
	assert.Contains(t, html, "Welcome, &lt;b&gt;mallory&lt;/b&gt;!")
}

func TestRenderer_EmptyList(t *testing.T) {
	r := newRenderer(t)
	snap := controller.Snapshot{State: core.InitialPageState(), Form: controller.PristineForm()}

	html, err := r.RenderString(ListTemplate, NewPageData(snap, nil))
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(html, EmptyMessage))
	assert.Contains(t, html, "Page 1 of 1")
	assert.Equal(t, 2, strings.Count(html, " disabled>"), "both navigation buttons are disabled")
}

func TestRenderer_FormModes(t *testing.T) {
	r := newRenderer(t)

	idle, err := r.RenderString(FormTemplate, NewPageData(controller.Snapshot{Form: controller.PristineForm()}, []string{"Food"}))
	require.NoError(t, err)
	assert.Contains(t, idle, "Add New Expense")
	assert.Contains(t, idle, `id="cancel-edit"`)
	assert.Contains(t, idle, " hidden>Cancel</button>")
	assert.NotContains(t, idle, `name="id"`)

	editForm := controller.Form{Mode: controller.ModeUpdate, RecordID: 3, Values: core.DraftInput{Description: "Taxi", Category: "Food", IsRecurring: true}}
	editing, err := r.RenderString(FormTemplate, NewPageData(controller.Snapshot{Form: editForm}, []string{"Food"}))
	require.NoError(t, err)
	assert.Contains(t, editing, "Edit Expense")
	assert.NotContains(t, editing, " hidden>Cancel</button>")
	assert.Contains(t, editing, `name="id" value="3"`)
	assert.Contains(t, editing, `value="Taxi"`)
	assert.Contains(t, editing, " checked>")
}

func TestRenderer_SwapMarksOnlyOutOfBandFragments(t *testing.T) {
	r := newRenderer(t)
	snap := controller.Snapshot{State: core.InitialPageState(), Form: controller.PristineForm()}

	html, err := r.RenderSwap(FormTemplate, []string{ListTemplate}, NewPageData(snap, []string{"Food"}))
	require.NoError(t, err)
	assert.Contains(t, html, `<section id="expense-form">`)
	assert.Contains(t, html, `<section id="expense-list" hx-swap-oob="true">`)
	assert.Equal(t, 1, strings.Count(html, "hx-swap-oob"))
	assert.Less(t, strings.Index(html, "expense-form"), strings.Index(html, "expense-list"), "target comes first")

	list, err := r.RenderSwap(ListTemplate, nil, NewPageData(snap, nil))
	require.NoError(t, err)
	assert.NotContains(t, list, "hx-swap-oob")
	assert.NotContains(t, list, `id="expense-form"`)
}

func TestRenderer_DeleteAsksForConfirmation(t *testing.T) {
	r := newRenderer(t)
	snap := controller.Snapshot{
		State:   core.NewPageState(1, 1),
		Records: []core.ExpenseRecord{record(9, "Bus", "Transport", "2", "0", "2", false)},
		Form:    controller.PristineForm(),
	}
	html, err := r.RenderString(ListTemplate, NewPageData(snap, nil))
	require.NoError(t, err)
	assert.Contains(t, html, `hx-confirm="Are you sure you want to delete this expense?"`)
	assert.Contains(t, html, `hx-post="/ui/expenses/9/delete"`)
}

func TestNewRenderer_MissingTemplate(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/index.html": {Data: []byte(`{{define "app"}}{{end}}`)},
	}
	_, err := NewRenderer(fsys)
	assert.Error(t, err)
}
