package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

func (r *Repository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (budget_id, user_id, category_id, max_spend_cents,
			start_date, end_date, timeframe_type, timeframe_interval, recurring_start_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.UserID.String(), b.CategoryID.String(), b.MaxSpend.Cents,
		encodeTime(b.StartDate), encodeTime(b.EndDate), string(b.Timeframe),
		nullInterval(b), encodeTimePtr(b.RecurringStart))
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Budget{}, store.ErrNotFound
		}
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (r *Repository) GetBudget(ctx context.Context, id uuid.UUID) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT budget_id, user_id, category_id, max_spend_cents, start_date,
			end_date, timeframe_type, timeframe_interval, recurring_start_date
		FROM budgets WHERE budget_id = ?`, id.String())
	return scanBudget(row)
}

func (r *Repository) ListBudgets(ctx context.Context, userID *uuid.UUID) ([]core.Budget, error) {
	query := `
		SELECT budget_id, user_id, category_id, max_spend_cents, start_date,
			end_date, timeframe_type, timeframe_interval, recurring_start_date
		FROM budgets`
	var args []any
	if userID != nil {
		query += ` WHERE user_id = ?`
		args = append(args, userID.String())
	}
	query += ` ORDER BY start_date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET category_id = ?, max_spend_cents = ?, start_date = ?,
			end_date = ?, timeframe_type = ?, timeframe_interval = ?, recurring_start_date = ?
		WHERE budget_id = ?`,
		b.CategoryID.String(), b.MaxSpend.Cents, encodeTime(b.StartDate),
		encodeTime(b.EndDate), string(b.Timeframe), nullInterval(b),
		encodeTimePtr(b.RecurringStart), b.ID.String())
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Budget{}, store.ErrNotFound
	}
	return b, nil
}

func (r *Repository) DeleteBudget(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE budget_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b              core.Budget
		id, userID     string
		categoryID     string
		startDate      string
		endDate        string
		timeframe      string
		interval       sql.NullInt64
		recurringStart sql.NullString
	)
	err := row.Scan(&id, &userID, &categoryID, &b.MaxSpend.Cents, &startDate,
		&endDate, &timeframe, &interval, &recurringStart)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, store.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	if b.ID, err = uuid.Parse(id); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget id: %w", err)
	}
	if b.UserID, err = uuid.Parse(userID); err != nil {
		return core.Budget{}, fmt.Errorf("parse user id: %w", err)
	}
	if b.CategoryID, err = uuid.Parse(categoryID); err != nil {
		return core.Budget{}, fmt.Errorf("parse category id: %w", err)
	}
	if b.StartDate, err = decodeTime(startDate); err != nil {
		return core.Budget{}, err
	}
	if b.EndDate, err = decodeTime(endDate); err != nil {
		return core.Budget{}, err
	}
	if b.RecurringStart, err = decodeTimePtr(recurringStart); err != nil {
		return core.Budget{}, err
	}
	b.Timeframe = core.TimeframeType(timeframe)
	if interval.Valid {
		b.Interval = int(interval.Int64)
	}
	return b, nil
}

func nullInterval(b core.Budget) sql.NullInt64 {
	if b.Timeframe == core.Custom {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(b.Interval), Valid: true}
}
