package core

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func validNewExpense() NewExpense {
	return NewExpense{
		UserID:        uuid.New(),
		Item:          "Coffee",
		Vendor:        "Bar Roma",
		Price:         Money{Cents: 120},
		DatePurchased: time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewExpense_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NewExpense)
		wantErr error
	}{
		{"valid", func(*NewExpense) {}, nil},
		{"missing user", func(e *NewExpense) { e.UserID = uuid.Nil }, ErrMissingUser},
		{"empty item", func(e *NewExpense) { e.Item = "  " }, ErrEmptyItem},
		{"empty vendor", func(e *NewExpense) { e.Vendor = "" }, ErrEmptyVendor},
		{"zero price", func(e *NewExpense) { e.Price = Money{} }, ErrInvalidAmount},
		{"negative price", func(e *NewExpense) { e.Price = Money{Cents: -1} }, ErrInvalidAmount},
		{"price over cap", func(e *NewExpense) { e.Price = Money{Cents: MaxPriceCents + 1} }, ErrInvalidAmount},
		{"zero date", func(e *NewExpense) { e.DatePurchased = time.Time{} }, ErrInvalidDate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := validNewExpense()
			tc.mutate(&e)
			err := e.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestWishItem_Validate(t *testing.T) {
	valid := WishItem{
		UserID:   uuid.New(),
		Item:     "Bike",
		Price:    Money{Cents: 40000},
		Priority: 5,
		Status:   Wished,
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid item rejected: %v", err)
	}

	w := valid
	w.Priority = 0
	if !errors.Is(w.Validate(), ErrInvalidPriority) {
		t.Error("priority 0 should be rejected")
	}
	w = valid
	w.Priority = 11
	if !errors.Is(w.Validate(), ErrInvalidPriority) {
		t.Error("priority 11 should be rejected")
	}
	w = valid
	w.Status = "pondering"
	if !errors.Is(w.Validate(), ErrInvalidStatus) {
		t.Error("unknown status should be rejected")
	}
}

func TestBudget_Validate(t *testing.T) {
	base := func() Budget {
		start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
		return Budget{
			UserID:         uuid.New(),
			CategoryID:     uuid.New(),
			MaxSpend:       Money{Cents: 50000},
			StartDate:      start,
			EndDate:        start.AddDate(1, 0, 0),
			Timeframe:      Monthly,
			Interval:       1,
			RecurringStart: &start,
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid budget rejected: %v", err)
	}

	b := base()
	b.Timeframe = "decennial"
	if !errors.Is(b.Validate(), ErrInvalidTimeframe) {
		t.Error("unknown timeframe should be rejected")
	}

	b = base()
	b.Interval = 0
	if !errors.Is(b.Validate(), ErrInvalidInterval) {
		t.Error("recurring budget needs interval >= 1")
	}

	b = base()
	b.Interval = 101
	if !errors.Is(b.Validate(), ErrInvalidInterval) {
		t.Error("interval above 100 should be rejected")
	}

	b = base()
	b.RecurringStart = nil
	if b.Validate() == nil {
		t.Error("recurring budget needs a recurring start date")
	}

	b = base()
	b.Timeframe = Custom
	b.Interval = 0
	b.RecurringStart = nil
	if err := b.Validate(); err != nil {
		t.Errorf("custom budget should not need interval or recurring start: %v", err)
	}

	b = base()
	b.Timeframe = Custom
	b.Interval = 2
	if !errors.Is(b.Validate(), ErrInvalidInterval) {
		t.Error("custom budget must carry interval 0")
	}

	b = base()
	b.EndDate = b.StartDate
	if !errors.Is(b.Validate(), ErrInvalidDateRange) {
		t.Error("end date equal to start date should be rejected")
	}
}

func TestUser_Validate(t *testing.T) {
	valid := User{Username: "martina", Email: "m@example.com", Role: "regular"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid user rejected: %v", err)
	}

	u := valid
	u.Username = "ab"
	if u.Validate() == nil {
		t.Error("short username should be rejected")
	}
	u = valid
	u.Email = "not-an-email"
	if u.Validate() == nil {
		t.Error("email without @ should be rejected")
	}
	u = valid
	u.Role = "superuser"
	if u.Validate() == nil {
		t.Error("unknown role should be rejected")
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(ErrEmptyItem) {
		t.Error("sentinel validation errors should match ErrValidation")
	}
	if !IsValidation(Invalid("custom reason")) {
		t.Error("Invalid() errors should match ErrValidation")
	}
	if IsValidation(errors.New("disk full")) {
		t.Error("plain errors should not match ErrValidation")
	}
}
