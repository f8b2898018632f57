package importer

import (
	"strings"
	"testing"
	"time"
)

func TestValidateRows(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantRows   int
		wantErrs   int
		wantReason string
	}{
		{
			name:     "all fields valid",
			raw:      "item\tvendor\tprice\tday\nCoffee\tBar\t1.20\t3",
			wantRows: 1,
		},
		{
			name:       "empty item with column present",
			raw:        "item\tprice\n\t1.20",
			wantErrs:   1,
			wantReason: "item cannot be empty",
		},
		{
			name:       "empty vendor with column present",
			raw:        "item\tvendor\nCoffee\t",
			wantErrs:   1,
			wantReason: "vendor cannot be empty",
		},
		{
			name:       "non-numeric price",
			raw:        "item\tprice\nCoffee\tcheap",
			wantErrs:   1,
			wantReason: "not a valid amount",
		},
		{
			name:       "negative price",
			raw:        "item\tprice\nCoffee\t-3",
			wantErrs:   1,
			wantReason: "not a valid amount",
		},
		{
			name:       "day out of range",
			raw:        "item\tday\nCoffee\t32",
			wantErrs:   1,
			wantReason: "between 1 and 31",
		},
		{
			name:       "day not a number",
			raw:        "item\tday\nCoffee\ttoday",
			wantErrs:   1,
			wantReason: "between 1 and 31",
		},
		{
			name:     "empty price cell treated as absent",
			raw:      "item\tprice\nCoffee\t",
			wantRows: 1,
		},
		{
			name:     "mixed valid and invalid rows",
			raw:      "item\tprice\nCoffee\t1\nTea\tbad\nCake\t2",
			wantRows: 2,
			wantErrs: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			table, err := ParseTable(tc.raw)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			rows, errs := ValidateRows(table)
			if len(rows) != tc.wantRows {
				t.Errorf("valid rows: got %d, want %d", len(rows), tc.wantRows)
			}
			if len(errs) != tc.wantErrs {
				t.Fatalf("row errors: got %d, want %d (%v)", len(errs), tc.wantErrs, errs)
			}
			if tc.wantReason != "" && !strings.Contains(errs[0].Reason, tc.wantReason) {
				t.Errorf("reason %q should contain %q", errs[0].Reason, tc.wantReason)
			}
		})
	}
}

func TestValidateRows_OneErrorPerBadRow(t *testing.T) {
	// Row 2 has both an empty item and a bad price; it must produce exactly
	// one error carrying its 1-based row number.
	raw := "item\tprice\nCoffee\t1\n\tbad"

	table, err := ParseTable(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, errs := ValidateRows(table)
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 error, got %d: %v", len(errs), errs)
	}
	if errs[0].Row != 2 {
		t.Errorf("error should name row 2, got %d", errs[0].Row)
	}
}

func TestValidateRows_DefaultsForAbsentColumns(t *testing.T) {
	raw := "price\n2.50"

	table, err := ParseTable(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rows, errs := ValidateRows(table)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	row := rows[0]
	if row.Item != defaultItem {
		t.Errorf("absent item column should default, got %q", row.Item)
	}
	if row.Vendor != defaultVendor {
		t.Errorf("absent vendor column should default, got %q", row.Vendor)
	}
	if row.Day != 0 {
		t.Errorf("absent day should stay 0, got %d", row.Day)
	}
	if row.Price.Cents != 250 {
		t.Errorf("price: got %d cents, want 250", row.Price.Cents)
	}
}

func TestValidateRows_CategoriesSplit(t *testing.T) {
	raw := "item\tcategories\nCoffee\tFood, Groceries ,  Fun"

	table, err := ParseTable(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rows, _ := ValidateRows(table)
	got := rows[0].Categories
	want := []string{"Food", "Groceries", "Fun"}
	if len(got) != len(want) {
		t.Fatalf("categories: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("categories[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolveDate(t *testing.T) {
	tests := []struct {
		name    string
		year    int
		month   time.Month
		day     int
		want    string
		wantErr bool
	}{
		{"plain date", 2024, time.March, 15, "2024-03-15", false},
		{"day 31 in 30-day month", 2024, time.April, 31, "", true},
		{"feb 29 leap year", 2024, time.February, 29, "2024-02-29", false},
		{"feb 29 non-leap year", 2023, time.February, 29, "", true},
		{"month out of range", 2024, time.Month(13), 1, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveDate(tc.year, tc.month, tc.day)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Format("2006-01-02") != tc.want {
				t.Errorf("got %s, want %s", got.Format("2006-01-02"), tc.want)
			}
		})
	}
}

func TestSplitCategories(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Food, Groceries ,  Fun", []string{"Food", "Groceries", "Fun"}},
		{"Food,Food,Fun", []string{"Food", "Fun"}},
		{"food,Food", []string{"food", "Food"}}, // case-sensitive
		{" , ,", nil},
		{"", nil},
		{"Solo", []string{"Solo"}},
	}

	for _, tc := range tests {
		got := SplitCategories(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("SplitCategories(%q): got %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("SplitCategories(%q)[%d]: got %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}
