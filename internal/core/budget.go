package core

import "time"

// BudgetStatus carries the derived values for a budget. They are computed on
// read from the expenses and wishlist tables, never stored.
type BudgetStatus struct {
	Budget       Budget
	WindowStart  time.Time
	WindowEnd    time.Time // exclusive
	CurrentSpend Money
	FutureSpend  Money
	OverMax      bool
}

// ActiveWindow resolves the budget window containing ref.
//
// Custom budgets have exactly one window, [StartDate, EndDate.AddDate(0,0,1)).
// Recurring budgets tile forward from RecurringStart in steps of Interval
// periods; the window end is exclusive so adjacent windows never overlap.
// A ref before the first window resolves to the first window.
func (b Budget) ActiveWindow(ref time.Time) (start, end time.Time) {
	if b.Timeframe == Custom {
		return dateOnly(b.StartDate), dateOnly(b.EndDate).AddDate(0, 0, 1)
	}

	start = dateOnly(*b.RecurringStart)
	ref = dateOnly(ref)
	for {
		end = b.advance(start)
		if ref.Before(end) {
			return start, end
		}
		start = end
	}
}

// Contains reports whether day falls inside the budget window active at ref.
func (b Budget) Contains(ref, day time.Time) bool {
	start, end := b.ActiveWindow(ref)
	day = dateOnly(day)
	return !day.Before(start) && day.Before(end)
}

func (b Budget) advance(t time.Time) time.Time {
	switch b.Timeframe {
	case Yearly:
		return t.AddDate(b.Interval, 0, 0)
	case Monthly:
		return t.AddDate(0, b.Interval, 0)
	case Weekly:
		return t.AddDate(0, 0, 7*b.Interval)
	}
	return t
}

// Derive fills in the computed fields from the pre-aggregated sums.
func (b Budget) Derive(ref time.Time, current, future Money) BudgetStatus {
	start, end := b.ActiveWindow(ref)
	return BudgetStatus{
		Budget:       b,
		WindowStart:  start,
		WindowEnd:    end,
		CurrentSpend: current,
		FutureSpend:  future,
		OverMax:      current.Cents > b.MaxSpend.Cents,
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
