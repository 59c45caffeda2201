// Package controller owns the client-side state of one expense list view:
// the current page, the category filter, the last applied page of records
// and the edit session. Every user action funnels into Refresh, the single
// place where a backend response is reconciled with local state.
//
// Concurrent refreshes are resolved by cancel-and-replace: each refresh takes
// a sequence number and cancels the one in flight, and a response is applied
// only while its sequence number is still the latest issued. The last
// requested state therefore always wins, regardless of completion order.
package controller

import (
	"context"
	"errors"
	"sync"

	"expenseui/internal/api"
	"expenseui/internal/core"
	"expenseui/internal/log"
)

// ChangeKind names a successful write.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change describes one successful write, published after the backend accepted it.
type Change struct {
	Kind     ChangeKind
	RecordID int64
	Record   core.ExpenseRecord
	Username string
}

// ChangeNotifier receives write events. Failures are logged and never fail
// the user operation.
type ChangeNotifier interface {
	NotifyChange(ctx context.Context, ch Change) error
}

// Options tunes a Controller.
type Options struct {
	// PreserveEditOnFetchFailure keeps the edit session alive when a refresh
	// fails. When false a failed refresh resets the form like a cancel.
	PreserveEditOnFetchFailure bool
	Notifier                   ChangeNotifier
	Logger                     *log.Logger
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{PreserveEditOnFetchFailure: true}
}

// Controller is the pagination/filter controller for one list view.
// All methods are safe for concurrent use.
type Controller struct {
	backend api.Backend
	opts    Options
	logger  *log.Logger

	mu       sync.Mutex
	username string
	page     int
	filter   core.Filter
	state    core.PageState
	records  []core.ExpenseRecord
	edit     EditSession
	form     Form
	loaded   bool

	seq            uint64
	cancelInflight context.CancelFunc
	editGen        uint64

	bootOnce sync.Once
	booted   bool
	bootErr  error
}

// New creates a controller on page 1 with no filter and an idle edit session.
func New(backend api.Backend, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &Controller{
		backend: backend,
		opts:    opts,
		logger:  logger.WithComponent(log.ComponentController),
		page:    1,
		filter:  core.FilterAll,
		state:   core.InitialPageState(),
		form:    PristineForm(),
	}
}

// Bootstrap checks the backend session once and, when it is valid, records
// the display name and refreshes. Concurrent first calls share one status
// request. Any failure to confirm the session is an AuthFailure; it is
// remembered and returned again on later calls without asking the backend.
func (c *Controller) Bootstrap(ctx context.Context) error {
	c.bootOnce.Do(func() { c.checkSession(ctx) })

	c.mu.Lock()
	err := c.bootErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.Refresh(ctx)
}

func (c *Controller) checkSession(ctx context.Context) {
	status, err := c.backend.AuthStatus(ctx)
	switch {
	case err != nil:
		err = core.AuthFailure("Could not verify session", err)
	case !status.LoggedIn:
		err = core.AuthFailure("Not logged in", nil)
	}

	c.mu.Lock()
	c.booted = true
	c.bootErr = err
	if err == nil {
		c.username = status.Username
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.WarnContext(ctx, "Session check failed",
			log.FieldOperation, log.OpBootstrap,
			log.FieldError, err.Error())
		return
	}
	c.logger.InfoContext(ctx, "Session confirmed",
		log.FieldOperation, log.OpBootstrap,
		log.FieldUsername, status.Username)
}

// Refresh fetches the current page for the current filter and, when this is
// still the latest refresh, replaces records and page state from that one
// response. A superseded refresh returns nil without touching state. On
// failure the previous view is kept and a FetchFailure (or AuthFailure) is
// returned. The edit session is left alone: only a save, a cancel or the
// deletion of the edited record ends it.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	page, filter := c.page, c.filter
	c.seq++
	seq := c.seq
	if c.cancelInflight != nil {
		c.cancelInflight()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancelInflight = cancel
	c.mu.Unlock()
	defer cancel()

	p, err := c.fetch(fetchCtx, page, filter)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		c.logger.DebugContext(ctx, "Discarding superseded refresh",
			log.FieldSequence, seq,
			log.FieldPage, page)
		return nil
	}
	c.cancelInflight = nil

	if err != nil {
		if !c.opts.PreserveEditOnFetchFailure {
			c.resetEditLocked()
		}
		c.logger.WarnContext(ctx, "Refresh failed, keeping last view",
			log.FieldOperation, log.OpRefresh,
			log.FieldPage, page,
			log.FieldFilter, filterLabel(filter),
			log.FieldErrorKind, core.KindOf(err).String(),
			log.FieldError, err.Error())
		return err
	}

	c.records = p.Records
	c.state = p.State
	c.page = p.State.CurrentPage
	c.loaded = true

	c.logger.DebugContext(ctx, "Refresh applied",
		log.FieldOperation, log.OpRefresh,
		log.FieldSequence, seq,
		log.FieldPage, p.State.CurrentPage,
		log.FieldTotalPages, p.State.TotalPages,
		log.FieldFilter, filterLabel(filter),
		log.FieldRecordCount, len(p.Records))
	return nil
}

// fetch lists one page. An empty page past the last one is clamped locally
// and fetched again once.
func (c *Controller) fetch(ctx context.Context, page int, filter core.Filter) (core.Page, error) {
	p, err := c.backend.ListExpenses(ctx, page, filter)
	if err != nil {
		return core.Page{}, classify(err)
	}
	if !p.OutOfRange() {
		return p, nil
	}

	clamped := p.State.TotalPages
	c.logger.DebugContext(ctx, "Requested page is past the end, clamping",
		log.FieldPage, page,
		log.FieldTotalPages, clamped)
	p, err = c.backend.ListExpenses(ctx, clamped, filter)
	if err != nil {
		return core.Page{}, classify(err)
	}
	return p, nil
}

// SetFilter changes the category filter. Any page position is meaningless
// for a new result set, so the view goes back to page 1.
func (c *Controller) SetFilter(ctx context.Context, f core.Filter) error {
	c.mu.Lock()
	c.filter = f
	c.page = 1
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "Filter changed",
		log.FieldOperation, log.OpFilter,
		log.FieldFilter, filterLabel(f))
	return c.Refresh(ctx)
}

// NextPage moves one page forward. It is a no-op on the last page.
func (c *Controller) NextPage(ctx context.Context) error {
	c.mu.Lock()
	if c.page >= c.state.TotalPages {
		c.mu.Unlock()
		return nil
	}
	c.page++
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// PrevPage moves one page back. It is a no-op on the first page.
func (c *Controller) PrevPage(ctx context.Context) error {
	c.mu.Lock()
	if c.page <= 1 {
		c.mu.Unlock()
		return nil
	}
	c.page--
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Saved is the outcome of Submit. Accepted is true once the backend stored
// the write, even when the refresh that follows fails.
type Saved struct {
	Accepted bool
	Kind     ChangeKind
	Record   core.ExpenseRecord
}

// Submit validates the form input and sends it as a create, or as an update
// of the edited record when an edit session is active. On success the edit
// session ends and the current page is refreshed. On failure the form keeps
// the submitted values and the backend message is returned verbatim.
func (c *Controller) Submit(ctx context.Context, in core.DraftInput) (Saved, error) {
	c.mu.Lock()
	c.form.Values = in
	edit := c.edit
	gen := c.editGen
	username := c.username
	c.mu.Unlock()

	d, err := core.ParseDraft(in)
	if err != nil {
		return Saved{}, core.ValidationFailure(err.Error(), err)
	}

	var (
		rec  core.ExpenseRecord
		kind ChangeKind
		op   string
	)
	if id, ok := edit.RecordID(); ok {
		kind, op = ChangeUpdated, log.OpUpdate
		rec, err = c.backend.UpdateExpense(ctx, id, d)
		if rec.ID == 0 {
			rec.ID = id
		}
	} else {
		kind, op = ChangeCreated, log.OpCreate
		rec, err = c.backend.CreateExpense(ctx, d)
	}
	if err != nil {
		err = classifyWrite(err)
		c.logger.ErrorContext(ctx, "Expense write rejected",
			log.FieldOperation, op,
			log.FieldExpenseDesc, d.Description,
			log.FieldCategory, d.Category,
			log.FieldErrorKind, core.KindOf(err).String(),
			log.FieldError, err.Error())
		return Saved{Kind: kind}, err
	}

	c.mu.Lock()
	if c.editGen == gen {
		c.resetEditLocked()
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Expense saved",
		log.FieldOperation, op,
		log.FieldRecordID, rec.ID,
		log.FieldExpenseDesc, d.Description,
		log.FieldCategory, d.Category)
	c.notify(ctx, Change{Kind: kind, RecordID: rec.ID, Record: rec, Username: username})
	return Saved{Accepted: true, Kind: kind, Record: rec}, c.Refresh(ctx)
}

// BeginEdit starts an edit session for a currently rendered record and
// pre-populates the form with its fields.
func (c *Controller) BeginEdit(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range c.records {
		if rec.ID == id {
			c.edit = Editing(id, rec.Draft())
			c.form = formFor(rec)
			c.editGen++
			return nil
		}
	}
	return core.ValidationFailure("Expense not found", nil)
}

// CancelEdit ends the edit session and resets the form to its pristine
// create-mode defaults.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetEditLocked()
}

// Delete removes a record. An unconfirmed delete is CancelledByUser and
// changes nothing. When the deleted record was the only row on a page past
// the first, the view moves back one page before refreshing.
func (c *Controller) Delete(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		c.logger.DebugContext(ctx, "Delete not confirmed",
			log.FieldOperation, log.OpDelete,
			log.FieldRecordID, id)
		return core.CancelledByUser("Delete cancelled")
	}

	if err := c.backend.DeleteExpense(ctx, id); err != nil {
		err = classifyWrite(err)
		c.logger.ErrorContext(ctx, "Expense delete rejected",
			log.FieldOperation, log.OpDelete,
			log.FieldRecordID, id,
			log.FieldErrorKind, core.KindOf(err).String(),
			log.FieldError, err.Error())
		return err
	}

	c.mu.Lock()
	sole := len(c.records) == 1 && c.records[0].ID == id
	if sole && c.state.CurrentPage > 1 {
		c.page = c.state.CurrentPage - 1
	}
	if editID, ok := c.edit.RecordID(); ok && editID == id {
		c.resetEditLocked()
	}
	username := c.username
	page := c.page
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldRecordID, id,
		log.FieldPage, page)
	c.notify(ctx, Change{Kind: ChangeDeleted, RecordID: id, Username: username})
	return c.Refresh(ctx)
}

// resetEditLocked returns to Idle with a pristine form. c.mu must be held.
func (c *Controller) resetEditLocked() {
	c.edit = Idle
	c.form = PristineForm()
	c.editGen++
}

func (c *Controller) notify(ctx context.Context, ch Change) {
	if c.opts.Notifier == nil {
		return
	}
	if err := c.opts.Notifier.NotifyChange(ctx, ch); err != nil {
		c.logger.WarnContext(ctx, "Change notification failed",
			log.FieldOperation, log.OpPublish,
			log.FieldRecordID, ch.RecordID,
			log.FieldError, err.Error())
	}
}

// Snapshot is a consistent copy of everything a view needs.
type Snapshot struct {
	Username string
	Filter   core.Filter
	State    core.PageState
	Records  []core.ExpenseRecord
	Edit     EditSession
	Form     Form
	Loaded   bool
}

// Snapshot returns the current state under one lock.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Username: c.username,
		Filter:   c.filter,
		State:    c.state,
		Records:  append([]core.ExpenseRecord(nil), c.records...),
		Edit:     c.edit,
		Form:     c.form,
		Loaded:   c.loaded,
	}
}

// Page returns the page the controller points at. While a refresh is in
// flight this may differ from State().CurrentPage.
func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Filter returns the active category filter.
func (c *Controller) Filter() core.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// State returns the page state of the last applied response.
func (c *Controller) State() core.PageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Records returns a copy of the last applied records.
func (c *Controller) Records() []core.ExpenseRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.ExpenseRecord(nil), c.records...)
}

// Edit returns the current edit session.
func (c *Controller) Edit() EditSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.edit
}

// Form returns the current form contents.
func (c *Controller) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// Username returns the display name captured by Bootstrap.
func (c *Controller) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Ready reports whether Bootstrap has confirmed the session.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.booted && c.bootErr == nil
}

// classify turns an unclassified read error into a FetchFailure.
func classify(err error) error {
	if core.KindOf(err) == core.KindUnknown {
		return core.FetchFailure("", err)
	}
	return err
}

// classifyWrite turns an unclassified write error into a ValidationFailure so
// its text reaches the user.
func classifyWrite(err error) error {
	if core.KindOf(err) != core.KindUnknown {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.FetchFailure("Network error, please retry", err)
	}
	return core.ValidationFailure(err.Error(), err)
}

func filterLabel(f core.Filter) string {
	if f.IsAll() {
		return "all"
	}
	return f.Category
}
