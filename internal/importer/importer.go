// Package importer implements the bulk-import pipeline for expenses: a
// header-mapped parser for tab-separated input, per-row validation with error
// accumulation, and a sequential driver that submits rows to the store and
// reports an aggregate outcome.
package importer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// Field identifies a recognized import column.
type Field string

const (
	FieldItem       Field = "item"
	FieldVendor     Field = "vendor"
	FieldPrice      Field = "price"
	FieldDay        Field = "day"
	FieldPayment    Field = "payment_method"
	FieldNotes      Field = "notes"
	FieldCategories Field = "categories"
)

// headerSynonyms maps normalized header cells to fields. Matching is
// case-insensitive; the table is data so new synonyms are one-line additions.
var headerSynonyms = map[string]Field{
	"item":    FieldItem,
	"name":    FieldItem,
	"product": FieldItem,

	"vendor":   FieldVendor,
	"store":    FieldVendor,
	"merchant": FieldVendor,
	"shop":     FieldVendor,

	"price":  FieldPrice,
	"amount": FieldPrice,
	"cost":   FieldPrice,

	"day":          FieldDay,
	"date":         FieldDay,
	"day_of_month": FieldDay,
	"day of month": FieldDay,

	"method":         FieldPayment,
	"payment":        FieldPayment,
	"payment_method": FieldPayment,
	"payment method": FieldPayment,

	"notes":       FieldNotes,
	"note":        FieldNotes,
	"description": FieldNotes,
	"memo":        FieldNotes,

	"category":   FieldCategories,
	"categories": FieldCategories,
	"cat":        FieldCategories,
}

// SupportedHeaders returns the full synonym set, sorted, for error messages.
func SupportedHeaders() []string {
	out := make([]string, 0, len(headerSynonyms))
	for name := range headerSynonyms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Context carries the caller-supplied parameters for one import run.
// It is read-only for the duration of the run.
type Context struct {
	UserID uuid.UUID
	Month  time.Month
	Year   int
}

// Row is one validated candidate expense extracted from the input.
// Day 0 means the input had no usable day; the driver substitutes the
// current date.
type Row struct {
	Num           int // 1-based data row number
	Item          string
	Vendor        string
	Price         core.Money
	Day           int
	PaymentMethod string
	Notes         string
	Categories    []string
}

// RowError describes a failure scoped to a single row.
type RowError struct {
	Row    int
	Item   string
	Reason string
}

func (e RowError) String() string {
	if e.Item == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("row %d (%s): %s", e.Row, e.Item, e.Reason)
}

// Outcome is the aggregate report for one run. Attempted counts every data
// row, including those that failed validation before submission.
type Outcome struct {
	Attempted int
	Succeeded int
	Failed    int
	Errors    []RowError

	// KeepInput tells the caller to preserve its pending input so the user
	// can correct and retry. Set whenever at least one row failed.
	KeepInput bool
}

// Summary renders the outcome as a single human-readable line, with the
// individual row errors joined by semicolons.
func (o Outcome) Summary() string {
	if len(o.Errors) == 0 {
		return fmt.Sprintf("imported %d of %d rows", o.Succeeded, o.Attempted)
	}
	parts := make([]string, len(o.Errors))
	for i, e := range o.Errors {
		parts[i] = e.String()
	}
	return fmt.Sprintf("imported %d of %d rows, %d failed: %s",
		o.Succeeded, o.Attempted, o.Failed, strings.Join(parts, "; "))
}
