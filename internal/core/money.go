// Package core provides the expense domain model shared by the controller,
// the backend adapters and the render projection.
//
// This file contains decimal parsing for form input and the fixed display
// formats used by the expense table.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseDecimal parses a user-entered number.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// surrounding whitespace. Empty input and anything that is not a plain
// decimal number return ErrInvalidAmount.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 || strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatCurrency renders an amount with a dollar sign and exactly two decimals,
// e.g. "$12.30".
func FormatCurrency(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// FormatPercent renders a fractional rate as a percentage with one decimal,
// e.g. 0.085 -> "8.5%".
func FormatPercent(rate decimal.Decimal) string {
	return rate.Mul(hundred).StringFixed(1) + "%"
}

// FormatYesNo renders the recurring flag.
func FormatYesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// DraftInput is the raw, unparsed content of the expense form.
type DraftInput struct {
	Description string
	Category    string
	BaseAmount  string
	TaxRate     string
	IsRecurring bool
}

// ParseDraft converts raw form input into a validated Draft.
// The returned Draft carries whatever could be parsed even on error so the
// form can be re-populated with the user's values.
func ParseDraft(in DraftInput) (Draft, error) {
	d := Draft{
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		IsRecurring: in.IsRecurring,
	}
	// Amounts are still zero here, so only the text fields can fail.
	if err := d.Validate(); err != nil {
		return d, err
	}
	base, err := ParseDecimal(in.BaseAmount)
	if err != nil {
		return d, err
	}
	d.BaseAmount = base
	rate, err := ParseDecimal(in.TaxRate)
	if err != nil {
		return d, ErrInvalidTaxRate
	}
	d.TaxRate = rate
	return d, d.Validate()
}
