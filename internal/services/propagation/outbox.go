package propagation

import (
	"context"
	"log/slog"
	"time"

	"github.com/scorekeep/scorekeep/internal/storage"
)

// DefaultBatchSize bounds how many outbox tasks a single sweep processes
const DefaultBatchSize = 100

// Worker retries pending propagation tasks from the outbox. Tasks are
// applied at least once; re-application is safe because collection
// rewrites are idempotent.
type Worker struct {
	storage    storage.Storage
	propagator *Propagator
	logger     *slog.Logger
	batchSize  int
}

// NewWorker creates an outbox worker
func NewWorker(store storage.Storage, propagator *Propagator, logger *slog.Logger) *Worker {
	return &Worker{
		storage:    store,
		propagator: propagator,
		logger:     logger,
		batchSize:  DefaultBatchSize,
	}
}

// RunOnce processes one batch of pending tasks. Failing tasks stay queued
// with their attempt count and last error updated.
func (w *Worker) RunOnce(ctx context.Context) error {
	tasks, err := w.storage.ListPendingTasks(ctx, w.batchSize)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		updated, err := w.propagator.Apply(ctx, task)
		if err != nil {
			task.Attempts++
			task.LastError = err.Error()
			w.logger.Warn("propagation retry failed",
				slog.String("task_id", string(task.ID)),
				slog.String("collection", task.Collection),
				slog.String("old_identity_id", string(task.OldIdentityID)),
				slog.Int("attempts", task.Attempts),
				slog.String("error", err.Error()),
			)
			if err := w.storage.UpdateTask(ctx, task); err != nil {
				w.logger.Error("failed to update propagation task",
					slog.String("task_id", string(task.ID)),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		w.logger.Info("propagation task applied",
			slog.String("task_id", string(task.ID)),
			slog.String("collection", task.Collection),
			slog.Int("games_updated", updated),
		)
		if err := w.storage.CompleteTask(ctx, task.ID); err != nil {
			w.logger.Error("failed to complete propagation task",
				slog.String("task_id", string(task.ID)),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// Run sweeps the outbox on the given interval until the context is done
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("outbox sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
