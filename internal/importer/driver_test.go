package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

type fakeCreator struct {
	created []core.NewExpense
	failOn  map[string]error // keyed by item
}

func (f *fakeCreator) CreateExpense(_ context.Context, e core.NewExpense) (core.Expense, error) {
	if err, ok := f.failOn[e.Item]; ok {
		return core.Expense{}, err
	}
	f.created = append(f.created, e)
	return core.Expense{ID: uuid.New(), Item: e.Item}, nil
}

type fakeRefresher struct {
	calls int
}

func (f *fakeRefresher) Refresh(context.Context, uuid.UUID) error {
	f.calls++
	return nil
}

func newTestDriver(c *fakeCreator, r *fakeRefresher) *Driver {
	d := NewDriver(c, r, 0)
	d.now = func() time.Time { return time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC) }
	return d
}

func testContext() Context {
	return Context{UserID: uuid.New(), Month: time.March, Year: 2024}
}

func TestDriver_Run_AllRowsSucceed(t *testing.T) {
	creator := &fakeCreator{}
	refresher := &fakeRefresher{}
	d := newTestDriver(creator, refresher)

	raw := "item\tvendor\tprice\tday\n" +
		"Coffee\tBar\t1.20\t3\n" +
		"Book\tShop\t15\t20"

	out, err := d.Run(context.Background(), testContext(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Attempted != 2 || out.Succeeded != 2 || out.Failed != 0 {
		t.Errorf("outcome: %+v", out)
	}
	if out.KeepInput {
		t.Error("KeepInput should be false when nothing failed")
	}
	if refresher.calls != 1 {
		t.Errorf("refresh should be called once, got %d", refresher.calls)
	}
	if got := creator.created[0].DatePurchased.Format("2006-01-02"); got != "2024-03-03" {
		t.Errorf("date: got %s, want 2024-03-03", got)
	}
}

func TestDriver_Run_RowFailureDoesNotAbort(t *testing.T) {
	creator := &fakeCreator{failOn: map[string]error{"Row3": errors.New("boom")}}
	refresher := &fakeRefresher{}
	d := newTestDriver(creator, refresher)

	lines := []string{"item\tvendor\tprice"}
	for _, item := range []string{"Row1", "Row2", "Row3", "Row4", "Row5"} {
		lines = append(lines, item+"\tShop\t1")
	}

	out, err := d.Run(context.Background(), testContext(), strings.Join(lines, "\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Attempted != 5 || out.Succeeded != 4 || out.Failed != 1 {
		t.Errorf("outcome: %+v", out)
	}
	if !out.KeepInput {
		t.Error("KeepInput should be true when a row failed")
	}
	if len(out.Errors) != 1 || out.Errors[0].Row != 3 || out.Errors[0].Item != "Row3" {
		t.Errorf("errors: %v", out.Errors)
	}
	if refresher.calls != 1 {
		t.Errorf("refresh must run despite failures, got %d calls", refresher.calls)
	}
}

func TestDriver_Run_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation rejected", core.ErrInvalidAmount, "rejected"},
		{"deadline exceeded", context.DeadlineExceeded, "connection failed"},
		{"anything else", errors.New("disk full"), "server error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			creator := &fakeCreator{failOn: map[string]error{"Coffee": tc.err}}
			d := newTestDriver(creator, &fakeRefresher{})

			out, err := d.Run(context.Background(), testContext(), "item\tvendor\tprice\nCoffee\tBar\t1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out.Errors) != 1 {
				t.Fatalf("expected one error, got %v", out.Errors)
			}
			if !strings.HasPrefix(out.Errors[0].Reason, tc.want) {
				t.Errorf("reason %q should start with %q", out.Errors[0].Reason, tc.want)
			}
		})
	}
}

func TestDriver_Run_ImpossibleDayRejected(t *testing.T) {
	creator := &fakeCreator{}
	d := newTestDriver(creator, &fakeRefresher{})
	ic := Context{UserID: uuid.New(), Month: time.April, Year: 2024}

	out, err := d.Run(context.Background(), ic, "item\tvendor\tprice\tday\nCoffee\tBar\t1\t31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Succeeded != 0 || out.Failed != 1 {
		t.Errorf("day 31 in April must fail the row, got %+v", out)
	}
	if !strings.Contains(out.Errors[0].Reason, "does not exist") {
		t.Errorf("reason: %q", out.Errors[0].Reason)
	}
	if len(creator.created) != 0 {
		t.Errorf("nothing should be created, got %d", len(creator.created))
	}
}

func TestDriver_Run_AbsentDayUsesCurrentDate(t *testing.T) {
	creator := &fakeCreator{}
	d := newTestDriver(creator, &fakeRefresher{})

	_, err := d.Run(context.Background(), testContext(), "item\tvendor\tprice\nCoffee\tBar\t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := creator.created[0].DatePurchased.Format("2006-01-02"); got != "2024-03-15" {
		t.Errorf("date: got %s, want the driver clock's day 2024-03-15", got)
	}
}

func TestDriver_Run_HeaderErrorIsStructural(t *testing.T) {
	d := newTestDriver(&fakeCreator{}, &fakeRefresher{})

	_, err := d.Run(context.Background(), testContext(), "foo\tbar\nx\ty")
	var headerErr *HeaderError
	if !errors.As(err, &headerErr) {
		t.Fatalf("expected *HeaderError, got %v", err)
	}
}

func TestDriver_Run_Cancellation(t *testing.T) {
	creator := &fakeCreator{}
	refresher := &fakeRefresher{}
	d := NewDriver(creator, refresher, 10*time.Millisecond)
	d.now = time.Now

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw := "item\tvendor\tprice\nA\tShop\t1\nB\tShop\t1"
	out, err := d.Run(ctx, testContext(), raw)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !out.KeepInput {
		t.Error("cancelled run must keep the input")
	}
	if refresher.calls != 1 {
		t.Errorf("refresh must still run on cancellation, got %d calls", refresher.calls)
	}
}

func TestOutcome_Summary(t *testing.T) {
	out := Outcome{
		Attempted: 3,
		Succeeded: 1,
		Failed:    2,
		Errors: []RowError{
			{Row: 1, Item: "Coffee", Reason: "rejected: price invalid"},
			{Row: 3, Reason: "server error: boom"},
		},
	}
	got := out.Summary()
	if !strings.Contains(got, "imported 1 of 3 rows") {
		t.Errorf("summary should state totals: %q", got)
	}
	if !strings.Contains(got, "row 1 (Coffee): rejected: price invalid; row 3: server error: boom") {
		t.Errorf("summary should join errors with semicolons: %q", got)
	}
}
