package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/store"
)

func (r *Repository) CreateWish(ctx context.Context, w core.WishItem) (core.WishItem, error) {
	if err := w.Validate(); err != nil {
		return core.WishItem{}, err
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wishlist (wish_id, user_id, item, vendor, price_cents,
			priority, status, notes, planned_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID.String(), w.UserID.String(), w.Item, nullString(w.Vendor),
		w.Price.Cents, w.Priority, string(w.Status), nullString(w.Notes),
		encodeTimePtr(w.PlannedDate), encodeTime(w.CreatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.WishItem{}, store.ErrNotFound
		}
		return core.WishItem{}, fmt.Errorf("insert wish: %w", err)
	}
	return w, nil
}

func (r *Repository) GetWish(ctx context.Context, id uuid.UUID) (core.WishItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT wish_id, user_id, item, vendor, price_cents, priority, status,
			notes, planned_date, created_at
		FROM wishlist WHERE wish_id = ?`, id.String())
	return scanWish(row)
}

func (r *Repository) ListWishes(ctx context.Context, userID *uuid.UUID) ([]core.WishItem, error) {
	query := `
		SELECT wish_id, user_id, item, vendor, price_cents, priority, status,
			notes, planned_date, created_at
		FROM wishlist`
	var args []any
	if userID != nil {
		query += ` WHERE user_id = ?`
		args = append(args, userID.String())
	}
	query += ` ORDER BY priority DESC, created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	var out []core.WishItem
	for rows.Next() {
		w, err := scanWish(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateWish(ctx context.Context, w core.WishItem) (core.WishItem, error) {
	if err := w.Validate(); err != nil {
		return core.WishItem{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE wishlist SET item = ?, vendor = ?, price_cents = ?, priority = ?,
			status = ?, notes = ?, planned_date = ?
		WHERE wish_id = ?`,
		w.Item, nullString(w.Vendor), w.Price.Cents, w.Priority,
		string(w.Status), nullString(w.Notes), encodeTimePtr(w.PlannedDate),
		w.ID.String())
	if err != nil {
		return core.WishItem{}, fmt.Errorf("update wish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.WishItem{}, store.ErrNotFound
	}
	return r.GetWish(ctx, w.ID)
}

func (r *Repository) DeleteWish(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM wishlist WHERE wish_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete wish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanWish(row rowScanner) (core.WishItem, error) {
	var (
		w           core.WishItem
		id, userID  string
		vendor      sql.NullString
		status      string
		notes       sql.NullString
		plannedDate sql.NullString
		createdAt   string
	)
	err := row.Scan(&id, &userID, &w.Item, &vendor, &w.Price.Cents,
		&w.Priority, &status, &notes, &plannedDate, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WishItem{}, store.ErrNotFound
	}
	if err != nil {
		return core.WishItem{}, fmt.Errorf("scan wish: %w", err)
	}
	if w.ID, err = uuid.Parse(id); err != nil {
		return core.WishItem{}, fmt.Errorf("parse wish id: %w", err)
	}
	if w.UserID, err = uuid.Parse(userID); err != nil {
		return core.WishItem{}, fmt.Errorf("parse user id: %w", err)
	}
	if w.PlannedDate, err = decodeTimePtr(plannedDate); err != nil {
		return core.WishItem{}, err
	}
	if w.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.WishItem{}, err
	}
	w.Vendor = vendor.String
	w.Status = core.WishStatus(status)
	w.Notes = notes.String
	return w, nil
}
