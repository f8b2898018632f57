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

func (r *Repository) CreateImportRun(ctx context.Context, run core.ImportRun) (core.ImportRun, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = core.RunPending
	}
	run.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_runs (run_id, user_id, status, payload, month, year,
			attempted, succeeded, failed, errors, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.UserID.String(), string(run.Status), run.Payload,
		int(run.Month), run.Year, run.Attempted, run.Succeeded, run.Failed,
		run.Errors, encodeTime(run.CreatedAt), encodeTimePtr(run.CompletedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.ImportRun{}, store.ErrNotFound
		}
		return core.ImportRun{}, fmt.Errorf("insert import run: %w", err)
	}
	return run, nil
}

func (r *Repository) GetImportRun(ctx context.Context, id uuid.UUID) (core.ImportRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT run_id, user_id, status, payload, month, year, attempted,
			succeeded, failed, errors, created_at, completed_at
		FROM import_runs WHERE run_id = ?`, id.String())
	return scanImportRun(row)
}

func (r *Repository) UpdateImportRun(ctx context.Context, run core.ImportRun) (core.ImportRun, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE import_runs SET status = ?, payload = ?, attempted = ?,
			succeeded = ?, failed = ?, errors = ?, completed_at = ?
		WHERE run_id = ?`,
		string(run.Status), run.Payload, run.Attempted, run.Succeeded,
		run.Failed, run.Errors, encodeTimePtr(run.CompletedAt), run.ID.String())
	if err != nil {
		return core.ImportRun{}, fmt.Errorf("update import run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ImportRun{}, store.ErrNotFound
	}
	return r.GetImportRun(ctx, run.ID)
}

func (r *Repository) ListStalePendingRuns(ctx context.Context, cutoff time.Time) ([]core.ImportRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, user_id, status, payload, month, year, attempted,
			succeeded, failed, errors, created_at, completed_at
		FROM import_runs
		WHERE status = 'pending' AND created_at < ?
		ORDER BY created_at`, encodeTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list stale pending runs: %w", err)
	}
	defer rows.Close()

	var out []core.ImportRun
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanImportRun(row rowScanner) (core.ImportRun, error) {
	var (
		run         core.ImportRun
		id, userID  string
		status      string
		month       int
		createdAt   string
		completedAt sql.NullString
	)
	err := row.Scan(&id, &userID, &status, &run.Payload, &month, &run.Year,
		&run.Attempted, &run.Succeeded, &run.Failed, &run.Errors,
		&createdAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ImportRun{}, store.ErrNotFound
	}
	if err != nil {
		return core.ImportRun{}, fmt.Errorf("scan import run: %w", err)
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return core.ImportRun{}, fmt.Errorf("parse run id: %w", err)
	}
	if run.UserID, err = uuid.Parse(userID); err != nil {
		return core.ImportRun{}, fmt.Errorf("parse user id: %w", err)
	}
	if run.CreatedAt, err = decodeTime(createdAt); err != nil {
		return core.ImportRun{}, err
	}
	if run.CompletedAt, err = decodeTimePtr(completedAt); err != nil {
		return core.ImportRun{}, err
	}
	run.Status = core.RunStatus(status)
	run.Month = time.Month(month)
	return run, nil
}
