package controller

import "expenseui/internal/core"

// EditSession is either idle or editing one record. The zero value is idle.
type EditSession struct {
	editing  bool
	id       int64
	snapshot core.Draft
}

// Idle is the session with nothing being edited.
var Idle = EditSession{}

// Editing starts a session for the record with the given id.
func Editing(id int64, snapshot core.Draft) EditSession {
	return EditSession{editing: true, id: id, snapshot: snapshot}
}

// Active reports whether a record is being edited.
func (e EditSession) Active() bool { return e.editing }

// RecordID returns the edited record id, if any.
func (e EditSession) RecordID() (int64, bool) { return e.id, e.editing }

// Snapshot returns the record's editable fields as they were when editing began.
func (e EditSession) Snapshot() core.Draft { return e.snapshot }

// FormMode tells which request a form submit is routed to.
type FormMode int

const (
	ModeCreate FormMode = iota
	ModeUpdate
)

// Form is the content of the shared create/update form.
type Form struct {
	Mode     FormMode
	RecordID int64
	Values   core.DraftInput
}

// PristineForm is the create-mode form with every field at its default:
// empty text, the placeholder category option and recurring unchecked.
func PristineForm() Form {
	return Form{Mode: ModeCreate}
}

// formFor pre-populates the form with a record's editable fields.
func formFor(rec core.ExpenseRecord) Form {
	return Form{
		Mode:     ModeUpdate,
		RecordID: rec.ID,
		Values: core.DraftInput{
			Description: rec.Description,
			Category:    rec.Category,
			BaseAmount:  rec.BaseAmount.String(),
			TaxRate:     rec.TaxRate.String(),
			IsRecurring: rec.IsRecurring,
		},
	}
}

// Title is the heading shown above the form.
func (f Form) Title() string {
	if f.Mode == ModeUpdate {
		return "Edit Expense"
	}
	return "Add New Expense"
}

// ShowCancel reports whether the cancel-edit button is visible.
func (f Form) ShowCancel() bool {
	return f.Mode == ModeUpdate
}
