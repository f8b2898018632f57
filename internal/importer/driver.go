package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
)

// ExpenseCreator is the store-side dependency of the driver. Category names
// carried by the payload are matched by name first and created only when
// absent; attachment happens as part of creation.
type ExpenseCreator interface {
	CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error)
}

// Refresher re-reads the persisted view after a run. It is invoked regardless
// of the outcome: rows may have succeeded even when the run as a whole
// reports failures.
type Refresher interface {
	Refresh(ctx context.Context, userID uuid.UUID) error
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context, userID uuid.UUID) error

func (f RefresherFunc) Refresh(ctx context.Context, userID uuid.UUID) error {
	return f(ctx, userID)
}

// DefaultRowDelay spaces out successive submissions. It is a courtesy to the
// store, not a correctness requirement.
const DefaultRowDelay = 50 * time.Millisecond

// Driver runs the full pipeline: parse, validate, submit sequentially.
type Driver struct {
	creator   ExpenseCreator
	refresher Refresher
	delay     time.Duration
	now       func() time.Time
}

func NewDriver(creator ExpenseCreator, refresher Refresher, delay time.Duration) *Driver {
	return &Driver{
		creator:   creator,
		refresher: refresher,
		delay:     delay,
		now:       time.Now,
	}
}

// Run executes one import. Rows are submitted in input order, one at a time,
// and a row failure never aborts the run. The returned error is non-nil only
// for the structural case (no recognized columns) or cancellation; everything
// row-scoped is accumulated into the Outcome.
//
// Cancellation is cooperative: a cancelled context stops the run before the
// next submission, after the in-flight row completes.
func (d *Driver) Run(ctx context.Context, ic Context, raw string) (Outcome, error) {
	table, err := ParseTable(raw)
	if err != nil {
		return Outcome{}, err
	}

	rows, rowErrs := ValidateRows(table)
	outcome := Outcome{
		Attempted: len(table.Drafts),
		Failed:    len(rowErrs),
		Errors:    rowErrs,
	}

	for i, row := range rows {
		if i > 0 && d.delay > 0 {
			select {
			case <-time.After(d.delay):
			case <-ctx.Done():
			}
		}
		if err := ctx.Err(); err != nil {
			d.refresh(ctx, ic.UserID)
			outcome.KeepInput = true
			return outcome, err
		}

		date, err := d.resolveRowDate(ic, row)
		if err != nil {
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, RowError{Row: row.Num, Item: row.Item, Reason: err.Error()})
			continue
		}

		payload := core.NewExpense{
			UserID:        ic.UserID,
			Item:          row.Item,
			Vendor:        row.Vendor,
			Price:         row.Price,
			DatePurchased: date,
			PaymentMethod: row.PaymentMethod,
			Notes:         row.Notes,
			NewCategories: row.Categories,
		}

		if _, err := d.creator.CreateExpense(ctx, payload); err != nil {
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, RowError{Row: row.Num, Item: row.Item, Reason: classify(err)})
			slog.WarnContext(ctx, "Import row failed",
				"row", row.Num,
				"item", row.Item,
				"error", err)
			continue
		}
		outcome.Succeeded++
	}

	d.refresh(ctx, ic.UserID)

	outcome.KeepInput = len(outcome.Errors) > 0
	slog.InfoContext(ctx, "Import run completed",
		"user_id", ic.UserID,
		"attempted", outcome.Attempted,
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed)
	return outcome, nil
}

func (d *Driver) resolveRowDate(ic Context, row Row) (time.Time, error) {
	if row.Day == 0 {
		now := d.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return ResolveDate(ic.Year, ic.Month, row.Day)
}

func (d *Driver) refresh(ctx context.Context, userID uuid.UUID) {
	if d.refresher == nil {
		return
	}
	if err := d.refresher.Refresh(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Post-import refresh failed", "user_id", userID, "error", err)
	}
}

// classify maps a submission error onto the import error taxonomy:
// client rejection, connectivity failure, or server fault.
func classify(err error) string {
	if core.IsValidation(err) {
		return fmt.Sprintf("rejected: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return fmt.Sprintf("connection failed: %v", err)
	}
	return fmt.Sprintf("server error: %v", err)
}
