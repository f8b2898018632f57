// Package worker executes import runs delivered over AMQP, with a periodic
// sweep that picks up runs whose job message never arrived.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/importer"
	"tally/internal/services"
	"tally/internal/store"
)

type ImportWorker struct {
	store    store.Store
	imports  *services.ImportService
	staleAge time.Duration
}

func NewImportWorker(st store.Store, imports *services.ImportService, staleAge time.Duration) *ImportWorker {
	return &ImportWorker{
		store:    st,
		imports:  imports,
		staleAge: staleAge,
	}
}

// HandleJob processes one import job message. Returning an error nacks the
// delivery so the run is retried; permanent failures are acked, since
// redelivering the same payload can never change the outcome.
func (w *ImportWorker) HandleJob(ctx context.Context, msg *amqp.ImportJobMessage) error {
	slog.InfoContext(ctx, "Processing import job", "run_id", msg.RunID)

	run, err := w.imports.Execute(ctx, msg.RunID)
	if err != nil {
		var headerErr *importer.HeaderError
		if errors.As(err, &headerErr) || core.IsValidation(err) {
			// The run row is already finalized as failed.
			slog.WarnContext(ctx, "Import run failed permanently, dropping job",
				"run_id", msg.RunID, "error", err)
			return nil
		}
		return fmt.Errorf("execute import run: %w", err)
	}

	slog.InfoContext(ctx, "Import run finished",
		"run_id", run.ID,
		"status", run.Status,
		"attempted", run.Attempted,
		"succeeded", run.Succeeded,
		"failed", run.Failed)
	return nil
}

// SweepPending re-runs pending runs older than the stale age. This is a
// backup in case a job message was lost.
func (w *ImportWorker) SweepPending(ctx context.Context) error {
	cutoff := time.Now().Add(-w.staleAge)
	runs, err := w.store.ListStalePendingRuns(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale pending runs: %w", err)
	}
	if len(runs) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Re-running stale pending imports", "count", len(runs))
	for _, run := range runs {
		if _, err := w.imports.Execute(ctx, run.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to re-run pending import",
				"run_id", run.ID, "error", err)
			continue
		}
	}
	return nil
}

// RunSweeper blocks, sweeping at the given interval until ctx ends.
func (w *ImportWorker) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.SweepPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending sweep failed", "error", err)
			}
		}
	}
}
