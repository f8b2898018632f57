// Package services orchestrates operations that span the store, the import
// pipeline and the message queue.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/importer"
	"tally/internal/store"
)

// JobQueue publishes import jobs for asynchronous execution. Nil means the
// service runs imports inline.
type JobQueue interface {
	PublishImportJob(ctx context.Context, runID uuid.UUID) error
}

// ImportService creates, runs and tracks bulk imports.
type ImportService struct {
	store  store.Store
	queue  JobQueue
	driver *importer.Driver
}

func NewImportService(st store.Store, queue JobQueue, refresher importer.Refresher, rowDelay time.Duration) *ImportService {
	return &ImportService{
		store:  st,
		queue:  queue,
		driver: importer.NewDriver(st, refresher, rowDelay),
	}
}

// Submit records a run and either executes it inline or hands it to the
// worker. The returned bool reports whether execution was deferred.
func (s *ImportService) Submit(ctx context.Context, userID uuid.UUID, month time.Month, year int, payload string) (core.ImportRun, bool, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return core.ImportRun{}, false, fmt.Errorf("look up user: %w", err)
	}

	run, err := s.store.CreateImportRun(ctx, core.ImportRun{
		UserID:  userID,
		Payload: payload,
		Month:   month,
		Year:    year,
	})
	if err != nil {
		return core.ImportRun{}, false, fmt.Errorf("record import run: %w", err)
	}

	if s.queue != nil {
		if err := s.queue.PublishImportJob(ctx, run.ID); err != nil {
			// The run stays pending; the worker's backup sweep picks it up.
			slog.ErrorContext(ctx, "Failed to publish import job, leaving run pending",
				"run_id", run.ID, "error", err)
		}
		return run, true, nil
	}

	run, err = s.Execute(ctx, run.ID)
	return run, false, err
}

// Execute runs one recorded import and finalizes its row. A structural
// failure (unusable header) marks the run failed; row errors leave it
// completed with the counts telling the story.
func (s *ImportService) Execute(ctx context.Context, runID uuid.UUID) (core.ImportRun, error) {
	run, err := s.store.GetImportRun(ctx, runID)
	if err != nil {
		return core.ImportRun{}, fmt.Errorf("load import run: %w", err)
	}

	run.Status = core.RunRunning
	if run, err = s.store.UpdateImportRun(ctx, run); err != nil {
		return core.ImportRun{}, fmt.Errorf("mark run running: %w", err)
	}

	outcome, runErr := s.driver.Run(ctx, importer.Context{
		UserID: run.UserID,
		Month:  run.Month,
		Year:   run.Year,
	}, run.Payload)

	now := time.Now().UTC()
	run.Attempted = outcome.Attempted
	run.Succeeded = outcome.Succeeded
	run.Failed = outcome.Failed
	// Errors stays empty on a clean run; the summary line only carries
	// information when rows failed.
	run.Errors = ""
	if len(outcome.Errors) > 0 {
		run.Errors = outcome.Summary()
	}
	run.CompletedAt = &now
	if runErr != nil {
		run.Status = core.RunFailed
		run.Errors = runErr.Error()
	} else {
		run.Status = core.RunCompleted
	}
	if !outcome.KeepInput && runErr == nil {
		// Successful runs no longer need the raw input around.
		run.Payload = ""
	}

	finalized, uerr := s.store.UpdateImportRun(ctx, run)
	if uerr != nil {
		return run, fmt.Errorf("finalize import run: %w", uerr)
	}
	return finalized, runErr
}

func (s *ImportService) GetRun(ctx context.Context, runID uuid.UUID) (core.ImportRun, error) {
	return s.store.GetImportRun(ctx, runID)
}
