package core

import "net/url"

// Filter selects a single category or, when empty, every category.
type Filter struct {
	Category string
}

// FilterAll matches every record.
var FilterAll = Filter{}

// NewFilter builds a filter from a select value; "" and "all" both mean no filter.
func NewFilter(value string) Filter {
	if value == "" || value == "all" {
		return FilterAll
	}
	return Filter{Category: value}
}

// IsAll reports whether the filter matches every category.
func (f Filter) IsAll() bool {
	return f.Category == ""
}

// Apply adds the category parameter to q. The parameter is omitted entirely
// for FilterAll so the backend can tell "no filter" from an empty category.
func (f Filter) Apply(q url.Values) {
	if f.IsAll() {
		q.Del("category")
		return
	}
	q.Set("category", f.Category)
}

// Matches reports whether a record passes the filter.
func (f Filter) Matches(category string) bool {
	return f.IsAll() || f.Category == category
}

// PageState is the pagination metadata of the last applied response.
type PageState struct {
	CurrentPage int
	TotalPages  int
	HasPrev     bool
	HasNext     bool
}

// InitialPageState is the state before the first refresh.
func InitialPageState() PageState {
	return NewPageState(1, 1)
}

// NewPageState clamps current into [1, total] and derives the navigation flags.
func NewPageState(current, total int) PageState {
	if total < 1 {
		total = 1
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}
	return PageState{
		CurrentPage: current,
		TotalPages:  total,
		HasPrev:     current > 1,
		HasNext:     current < total,
	}
}

// Page is a single backend response: one page of records and its metadata.
// Both halves are always applied together.
type Page struct {
	Records []ExpenseRecord
	State   PageState
	// Requested is the page number the response was fetched for.
	Requested int
}

// OutOfRange reports whether the response is an empty page past the last
// one, which happens when rows disappear between two requests.
func (p Page) OutOfRange() bool {
	return len(p.Records) == 0 && p.Requested > p.State.TotalPages
}
