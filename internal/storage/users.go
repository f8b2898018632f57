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

func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, email, password_hash, role, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), u.Username, u.Email, u.PasswordHash, u.Role,
		encodeTime(u.CreatedAt), encodeTimePtr(nullableTime(u.LastLogin)))
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, username, email, password_hash, role, created_at, last_login
		FROM users WHERE user_id = ?`, id.String())
	return scanUser(row)
}

func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, username, email, password_hash, role, created_at, last_login
		FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, password_hash = ?, role = ?, last_login = ?
		WHERE user_id = ?`,
		u.Username, u.Email, u.PasswordHash, u.Role,
		encodeTimePtr(nullableTime(u.LastLogin)), u.ID.String())
	if err != nil {
		return core.User{}, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.User{}, store.ErrNotFound
	}
	return r.GetUser(ctx, u.ID)
}

func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u         core.User
		id        string
		createdAt string
		lastLogin sql.NullString
	)
	err := row.Scan(&id, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &createdAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	if u.ID, err = uuid.Parse(id); err != nil {
		return core.User{}, fmt.Errorf("parse user id: %w", err)
	}
	if u.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.User{}, err
	}
	if lastLogin.Valid {
		t, err := decodeTime(lastLogin.String)
		if err != nil {
			return core.User{}, err
		}
		u.LastLogin = t
	}
	return u, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
