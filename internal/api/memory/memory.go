// Package memory is an in-process expenses backend with the same paging,
// filtering and error behaviour as the real API. It backs the development
// API server and the controller tests.
package memory

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"expenseui/internal/api"
	"expenseui/internal/core"
)

const (
	// DefaultPageSize matches the backend's page size.
	DefaultPageSize = 10

	// SeedFile lists one category per line, relative to a data directory.
	SeedFile = "seed_categories.txt"
)

// ErrNotFound is wrapped by the error returned for an unknown record id.
var ErrNotFound = errors.New("expense not found")

type Store struct {
	mu       sync.Mutex
	cats     []string
	items    []core.ExpenseRecord
	nextID   int64
	pageSize int
	session  api.SessionStatus
}

var _ api.Backend = (*Store)(nil)

// Listing is a raw page as the backend computes it, before the client
// normalises it: Page may exceed Pages and Pages is 0 for an empty result.
type Listing struct {
	Items   []core.ExpenseRecord
	Page    int
	Pages   int
	HasPrev bool
	HasNext bool
}

func New(cats []string, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		cats:     dedupe(cats),
		nextID:   1,
		pageSize: pageSize,
		session:  api.SessionStatus{LoggedIn: true, Username: "demo"},
	}
}

// NewFromFiles seeds the category set from base/SeedFile, falling
// back to the default categories when the file is missing.
func NewFromFiles(base string, pageSize int) *Store {
	cats := readLines(filepath.Join(base, SeedFile))
	if len(cats) == 0 {
		for _, c := range core.DefaultCategories() {
			cats = append(cats, c.String())
		}
	}
	return New(cats, pageSize)
}

// Open prefers base/SeedFile and uses cats only when that file is absent.
func Open(base string, cats []string, pageSize int) *Store {
	if _, err := os.Stat(filepath.Join(base, SeedFile)); err == nil || len(cats) == 0 {
		return NewFromFiles(base, pageSize)
	}
	return New(cats, pageSize)
}

// SetSession changes what AuthStatus reports.
func (s *Store) SetSession(st api.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = st
}

// Categories returns the accepted category names.
func (s *Store) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cats...)
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) AuthStatus(_ context.Context) (api.SessionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, nil
}

// Paginate returns one page of records matching filter, newest first.
// Pages past the end come back empty, like the backend does.
func (s *Store) Paginate(page int, filter core.Filter) Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page < 1 {
		page = 1
	}
	var matched []core.ExpenseRecord
	for _, it := range s.items {
		if filter.Matches(it.Category) {
			matched = append(matched, it)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	pages := (len(matched) + s.pageSize - 1) / s.pageSize
	l := Listing{Page: page, Pages: pages, HasPrev: page > 1, HasNext: page < pages}
	start := (page - 1) * s.pageSize
	if start < len(matched) {
		end := start + s.pageSize
		if end > len(matched) {
			end = len(matched)
		}
		l.Items = append([]core.ExpenseRecord(nil), matched[start:end]...)
	}
	return l
}

func (s *Store) ListExpenses(_ context.Context, page int, filter core.Filter) (core.Page, error) {
	l := s.Paginate(page, filter)
	return core.Page{
		Records:   l.Items,
		State:     core.NewPageState(l.Page, l.Pages),
		Requested: page,
	}, nil
}

func (s *Store) CreateExpense(_ context.Context, d core.Draft) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validate(d); err != nil {
		return core.ExpenseRecord{}, err
	}
	rec := recordFromDraft(s.nextID, d)
	s.nextID++
	s.items = append(s.items, rec)
	return rec, nil
}

func (s *Store) UpdateExpense(_ context.Context, id int64, d core.Draft) (core.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.ExpenseRecord{}, core.ValidationFailure("Expense not found", ErrNotFound)
	}
	if err := s.validate(d); err != nil {
		return core.ExpenseRecord{}, err
	}
	s.items[i] = recordFromDraft(id, d)
	return s.items[i], nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.ValidationFailure("Expense not found", ErrNotFound)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) indexOf(id int64) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) validate(d core.Draft) error {
	if err := d.Validate(); err != nil {
		return core.ValidationFailure(err.Error(), err)
	}
	for _, c := range s.cats {
		if c == d.Category {
			return nil
		}
	}
	return core.ValidationFailure("Invalid category", nil)
}

// recordFromDraft computes the tax-inclusive amount the way the backend does,
// rounded to cents.
func recordFromDraft(id int64, d core.Draft) core.ExpenseRecord {
	withTax := d.BaseAmount.Mul(decimal.NewFromInt(1).Add(d.TaxRate)).Round(2)
	return core.ExpenseRecord{
		ID:            id,
		Description:   d.Description,
		Category:      d.Category,
		BaseAmount:    d.BaseAmount,
		TaxRate:       d.TaxRate,
		AmountWithTax: withTax,
		IsRecurring:   d.IsRecurring,
	}
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
