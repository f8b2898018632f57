package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

// CreateExpense inserts the expense and its category links in one
// transaction. Category names are resolved with the same match-by-name-first
// rule as EnsureCategory.
func (r *Repository) CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	exp := core.Expense{
		ID:            uuid.New(),
		UserID:        e.UserID,
		Item:          e.Item,
		Vendor:        e.Vendor,
		Price:         e.Price,
		DatePurchased: e.DatePurchased,
		PaymentMethod: e.PaymentMethod,
		Notes:         e.Notes,
		CreatedAt:     time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (expense_id, user_id, item, vendor, price_cents,
			date_purchased, payment_method, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID.String(), exp.UserID.String(), exp.Item, exp.Vendor, exp.Price.Cents,
		encodeTime(exp.DatePurchased), nullString(exp.PaymentMethod),
		nullString(exp.Notes), encodeTime(exp.CreatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Expense{}, store.ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	for _, name := range e.NewCategories {
		cat, err := ensureCategoryTx(ctx, tx, name)
		if err != nil {
			return core.Expense{}, err
		}
		if err := attachCategoryTx(ctx, tx, exp.ID, cat.ID); err != nil {
			return core.Expense{}, err
		}
		exp.Categories = append(exp.Categories, cat)
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", exp.ID,
		"item", exp.Item,
		"price_cents", exp.Price.Cents,
		"categories", len(exp.Categories))
	return exp, nil
}

func ensureCategoryTx(ctx context.Context, tx *sql.Tx, name string) (core.Category, error) {
	c := core.Category{Name: name}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	row := tx.QueryRowContext(ctx,
		`SELECT category_id, category_name FROM categories WHERE category_name = ?`, name)
	existing, err := scanCategory(row)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return core.Category{}, err
	}
	c.ID = uuid.New()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO categories (category_id, category_name) VALUES (?, ?)`,
		c.ID.String(), c.Name); err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func attachCategoryTx(ctx context.Context, tx *sql.Tx, expenseID, categoryID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO expense_categories (expense_id, category_id)
		VALUES (?, ?)`, expenseID.String(), categoryID.String())
	if err != nil {
		return fmt.Errorf("attach category: %w", err)
	}
	return nil
}

func (r *Repository) GetExpense(ctx context.Context, id uuid.UUID) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT expense_id, user_id, item, vendor, price_cents, date_purchased,
			payment_method, notes, created_at
		FROM expenses WHERE expense_id = ?`, id.String())
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, err
	}
	if e.Categories, err = r.expenseCategories(ctx, e.ID); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (r *Repository) ListExpenses(ctx context.Context, f store.ExpenseFilter) ([]core.Expense, error) {
	var (
		conds []string
		args  []any
	)
	query := `
		SELECT e.expense_id, e.user_id, e.item, e.vendor, e.price_cents,
			e.date_purchased, e.payment_method, e.notes, e.created_at
		FROM expenses e`
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
	query += " ORDER BY e.date_purchased DESC, e.created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Skip)
	} else if f.Skip > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Skip)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Categories, err = r.expenseCategories(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	payload := core.NewExpense{
		UserID:        e.UserID,
		Item:          e.Item,
		Vendor:        e.Vendor,
		Price:         e.Price,
		DatePurchased: e.DatePurchased,
		PaymentMethod: e.PaymentMethod,
		Notes:         e.Notes,
	}
	if err := payload.Validate(); err != nil {
		return core.Expense{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET item = ?, vendor = ?, price_cents = ?,
			date_purchased = ?, payment_method = ?, notes = ?
		WHERE expense_id = ?`,
		e.Item, e.Vendor, e.Price.Cents, encodeTime(e.DatePurchased),
		nullString(e.PaymentMethod), nullString(e.Notes), e.ID.String())
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Expense{}, store.ErrNotFound
	}
	return r.GetExpense(ctx, e.ID)
}

func (r *Repository) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE expense_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) AttachCategory(ctx context.Context, expenseID, categoryID uuid.UUID) error {
	if _, err := r.GetExpense(ctx, expenseID); err != nil {
		return err
	}
	if _, err := r.GetCategory(ctx, categoryID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO expense_categories (expense_id, category_id)
		VALUES (?, ?)`, expenseID.String(), categoryID.String())
	if err != nil {
		return fmt.Errorf("attach category: %w", err)
	}
	return nil
}

func (r *Repository) DetachCategory(ctx context.Context, expenseID, categoryID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM expense_categories WHERE expense_id = ? AND category_id = ?`,
		expenseID.String(), categoryID.String())
	if err != nil {
		return fmt.Errorf("detach category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) expenseCategories(ctx context.Context, expenseID uuid.UUID) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.category_id, c.category_name
		FROM categories c
		JOIN expense_categories ec ON ec.category_id = c.category_id
		WHERE ec.expense_id = ?
		ORDER BY c.category_name`, expenseID.String())
	if err != nil {
		return nil, fmt.Errorf("list expense categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e             core.Expense
		id, userID    string
		datePurchased string
		createdAt     string
		payment       sql.NullString
		notes         sql.NullString
	)
	err := row.Scan(&id, &userID, &e.Item, &e.Vendor, &e.Price.Cents,
		&datePurchased, &payment, &notes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, store.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	if e.ID, err = uuid.Parse(id); err != nil {
		return core.Expense{}, fmt.Errorf("parse expense id: %w", err)
	}
	if e.UserID, err = uuid.Parse(userID); err != nil {
		return core.Expense{}, fmt.Errorf("parse user id: %w", err)
	}
	if e.DatePurchased, err = decodeTime(datePurchased); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.Expense{}, err
	}
	e.PaymentMethod = payment.String
	e.Notes = notes.String
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
