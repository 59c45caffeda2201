package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Utilities     Category = "Utilities"
	Entertainment Category = "Entertainment"
	Other         Category = "Other"
)

// MaxDescriptionLength mirrors the backend column size.
const MaxDescriptionLength = 200

type (
	Category string

	// ExpenseRecord is a read-only snapshot of a server-owned expense.
	ExpenseRecord struct {
		ID            int64
		Description   string
		Category      string
		BaseAmount    decimal.Decimal
		TaxRate       decimal.Decimal // fraction in [0,1)
		AmountWithTax decimal.Decimal // server computed, never derived locally
		IsRecurring   bool
	}

	// Draft holds the editable fields sent on create and update.
	Draft struct {
		Description string
		Category    string
		BaseAmount  decimal.Decimal
		TaxRate     decimal.Decimal
		IsRecurring bool
	}
)

var (
	ErrEmptyDescription = errors.New("description is required")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory    = errors.New("category is required")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("base amount cannot be negative")
	ErrInvalidTaxRate   = errors.New("tax rate must be between 0 and 1")
)

// DefaultCategories is the category set offered when configuration does not override it.
func DefaultCategories() []Category {
	return []Category{Food, Transport, Utilities, Entertainment, Other}
}

// ParseCategories converts configured names, dropping blanks and duplicates.
func ParseCategories(names []string) []Category {
	seen := map[string]struct{}{}
	out := make([]Category, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, Category(n))
	}
	return out
}

func (c Category) String() string {
	return string(c)
}

// Draft returns the editable fields of the record.
func (r ExpenseRecord) Draft() Draft {
	return Draft{
		Description: r.Description,
		Category:    r.Category,
		BaseAmount:  r.BaseAmount,
		TaxRate:     r.TaxRate,
		IsRecurring: r.IsRecurring,
	}
}

// Validate applies the client-side required-field checks. It runs before any
// request is issued so an obviously incomplete form never reaches the backend.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if len(d.Description) > MaxDescriptionLength {
		return ErrDescriptionLong
	}
	if strings.TrimSpace(d.Category) == "" {
		return ErrEmptyCategory
	}
	if d.BaseAmount.IsNegative() {
		return ErrNegativeAmount
	}
	if d.TaxRate.IsNegative() || d.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return ErrInvalidTaxRate
	}
	return nil
}
