package controller

import (
	"context"
	"fmt"

	"expenseui/internal/core"
)

// IntentKind is a user action the controller understands.
type IntentKind int

const (
	IntentRefresh IntentKind = iota
	IntentSetFilter
	IntentNextPage
	IntentPrevPage
	IntentSubmit
	IntentEdit
	IntentCancelEdit
	IntentDelete
)

var intentNames = map[IntentKind]string{
	IntentRefresh:    "refresh",
	IntentSetFilter:  "filter",
	IntentNextPage:   "next",
	IntentPrevPage:   "prev",
	IntentSubmit:     "submit",
	IntentEdit:       "edit",
	IntentCancelEdit: "cancel",
	IntentDelete:     "delete",
}

func (k IntentKind) String() string {
	if s, ok := intentNames[k]; ok {
		return s
	}
	return fmt.Sprintf("intent(%d)", int(k))
}

// ParseIntentKind maps an intent name back to its kind.
func ParseIntentKind(s string) (IntentKind, bool) {
	for k, name := range intentNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Intent is a typed command emitted by the view. Only the fields relevant to
// Kind are read.
type Intent struct {
	Kind      IntentKind
	Filter    core.Filter
	RecordID  int64
	Input     core.DraftInput
	Confirmed bool
}

func RefreshIntent() Intent                  { return Intent{Kind: IntentRefresh} }
func FilterIntent(f core.Filter) Intent      { return Intent{Kind: IntentSetFilter, Filter: f} }
func NextPageIntent() Intent                 { return Intent{Kind: IntentNextPage} }
func PrevPageIntent() Intent                 { return Intent{Kind: IntentPrevPage} }
func SubmitIntent(in core.DraftInput) Intent { return Intent{Kind: IntentSubmit, Input: in} }
func EditIntent(id int64) Intent             { return Intent{Kind: IntentEdit, RecordID: id} }
func CancelEditIntent() Intent               { return Intent{Kind: IntentCancelEdit} }

func DeleteIntent(id int64, confirmed bool) Intent {
	return Intent{Kind: IntentDelete, RecordID: id, Confirmed: confirmed}
}

// Dispatch applies one intent.
func (c *Controller) Dispatch(ctx context.Context, in Intent) error {
	switch in.Kind {
	case IntentRefresh:
		return c.Refresh(ctx)
	case IntentSetFilter:
		return c.SetFilter(ctx, in.Filter)
	case IntentNextPage:
		return c.NextPage(ctx)
	case IntentPrevPage:
		return c.PrevPage(ctx)
	case IntentSubmit:
		_, err := c.Submit(ctx, in.Input)
		return err
	case IntentEdit:
		return c.BeginEdit(in.RecordID)
	case IntentCancelEdit:
		c.CancelEdit()
		return nil
	case IntentDelete:
		return c.Delete(ctx, in.RecordID, in.Confirmed)
	default:
		return fmt.Errorf("unknown intent %s", in.Kind)
	}
}
