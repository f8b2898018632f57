package importer

import (
	"fmt"
	"strconv"

	"tally/internal/core"
)

// Placeholder values for columns the input did not carry.
const (
	defaultItem   = "Unknown item"
	defaultVendor = "Unknown vendor"
)

// ValidateRows applies field checks to every draft and partitions the table
// into valid rows and row-scoped errors. Only columns present in the header
// are validated; absent columns receive defaults. A draft with any error is
// excluded whole, never partially imported.
func ValidateRows(t *Table) ([]Row, []RowError) {
	var (
		rows []Row
		errs []RowError
	)
	for _, d := range t.Drafts {
		row, err := validateDraft(t, d)
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}

func validateDraft(t *Table, d Draft) (Row, *RowError) {
	row := Row{
		Num:    d.Num,
		Item:   defaultItem,
		Vendor: defaultVendor,
	}
	fail := func(reason string) (Row, *RowError) {
		return Row{}, &RowError{Row: d.Num, Item: d.Fields[FieldItem], Reason: reason}
	}

	if t.Has(FieldItem) {
		if d.Fields[FieldItem] == "" {
			return fail("item cannot be empty")
		}
		row.Item = d.Fields[FieldItem]
	}
	if t.Has(FieldVendor) {
		if d.Fields[FieldVendor] == "" {
			return fail("vendor cannot be empty")
		}
		row.Vendor = d.Fields[FieldVendor]
	}
	if t.Has(FieldPrice) && d.Fields[FieldPrice] != "" {
		price, err := core.ParsePrice(d.Fields[FieldPrice])
		if err != nil {
			return fail(fmt.Sprintf("price %q is not a valid amount", d.Fields[FieldPrice]))
		}
		row.Price = price
	}
	if t.Has(FieldDay) && d.Fields[FieldDay] != "" {
		day, err := strconv.Atoi(d.Fields[FieldDay])
		if err != nil || day < 1 || day > 31 {
			return fail(fmt.Sprintf("day %q must be a whole number between 1 and 31", d.Fields[FieldDay]))
		}
		row.Day = day
	}
	row.PaymentMethod = d.Fields[FieldPayment]
	row.Notes = d.Fields[FieldNotes]
	if t.Has(FieldCategories) {
		row.Categories = SplitCategories(d.Fields[FieldCategories])
	}
	return row, nil
}
