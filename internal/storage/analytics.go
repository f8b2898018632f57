package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

func (r *Repository) TotalSpend(ctx context.Context, f store.TotalFilter) (core.Money, error) {
	var (
		conds []string
		args  []any
	)
	query := `SELECT COALESCE(SUM(e.price_cents), 0) FROM expenses e`
	if f.CategoryID != nil {
		query += ` JOIN expense_categories ec ON ec.expense_id = e.expense_id`
		conds = append(conds, "ec.category_id = ?")
		args = append(args, f.CategoryID.String())
	}
	if f.UserID != nil {
		conds = append(conds, "e.user_id = ?")
		args = append(args, f.UserID.String())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return core.Money{}, fmt.Errorf("total spend: %w", err)
	}
	return core.Money{Cents: total}, nil
}

func (r *Repository) SpendByCategory(ctx context.Context, userID *uuid.UUID) ([]store.CategoryTotal, error) {
	query := `
		SELECT c.category_id, c.category_name, SUM(e.price_cents), COUNT(e.expense_id)
		FROM categories c
		JOIN expense_categories ec ON ec.category_id = c.category_id
		JOIN expenses e ON e.expense_id = ec.expense_id`
	var args []any
	if userID != nil {
		query += ` WHERE e.user_id = ?`
		args = append(args, userID.String())
	}
	query += ` GROUP BY c.category_id, c.category_name ORDER BY SUM(e.price_cents) DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("spend by category: %w", err)
	}
	defer rows.Close()

	var out []store.CategoryTotal
	for rows.Next() {
		var (
			t  store.CategoryTotal
			id string
		)
		if err := rows.Scan(&id, &t.Category.Name, &t.Total.Cents, &t.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		if t.Category.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse category id: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) SumExpensesInWindow(ctx context.Context, userID, categoryID uuid.UUID, start, end time.Time) (core.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(e.price_cents), 0)
		FROM expenses e
		JOIN expense_categories ec ON ec.expense_id = e.expense_id
		WHERE e.user_id = ? AND ec.category_id = ?
			AND e.date_purchased >= ? AND e.date_purchased < ?`,
		userID.String(), categoryID.String(), encodeTime(start), encodeTime(end)).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses in window: %w", err)
	}
	return core.Money{Cents: total}, nil
}

func (r *Repository) SumScheduledWishesInWindow(ctx context.Context, userID uuid.UUID, start, end time.Time) (core.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(price_cents), 0)
		FROM wishlist
		WHERE user_id = ? AND status = 'scheduled'
			AND planned_date IS NOT NULL
			AND planned_date >= ? AND planned_date < ?`,
		userID.String(), encodeTime(start), encodeTime(end)).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum scheduled wishes in window: %w", err)
	}
	return core.Money{Cents: total}, nil
}
