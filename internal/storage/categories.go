package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

// EnsureCategory matches by exact name first and inserts only on a miss. The
// UNIQUE constraint on category_name closes the race between two concurrent
// ensures of the same name: the loser retries the lookup.
func (r *Repository) EnsureCategory(ctx context.Context, name string) (core.Category, error) {
	c := core.Category{Name: name}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	existing, err := r.getCategoryByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return core.Category{}, err
	}

	c.ID = uuid.New()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO categories (category_id, category_name) VALUES (?, ?)`,
		c.ID.String(), c.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return r.getCategoryByName(ctx, name)
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *Repository) getCategoryByName(ctx context.Context, name string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT category_id, category_name FROM categories WHERE category_name = ?`, name)
	return scanCategory(row)
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (category_id, category_name) VALUES (?, ?)`,
		c.ID.String(), c.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, core.Invalid("category name already exists")
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *Repository) GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT category_id, category_name FROM categories WHERE category_id = ?`, id.String())
	return scanCategory(row)
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, category_name FROM categories ORDER BY category_name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
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

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET category_name = ? WHERE category_id = ?`,
		c.Name, c.ID.String())
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, core.Invalid("category name already exists")
		}
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Category{}, store.ErrNotFound
	}
	return c, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE category_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c  core.Category
		id string
	)
	err := row.Scan(&id, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, store.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	if c.ID, err = uuid.Parse(id); err != nil {
		return core.Category{}, fmt.Errorf("parse category id: %w", err)
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
