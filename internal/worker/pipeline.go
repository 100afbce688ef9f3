package worker

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/subtitle"
)

// processTask drives a single claimed task through acquire, transcribe, and
// persist, then attempts owner notification. Failures never propagate; the
// task is either released for another attempt or marked failed.
func (m *Manager) processTask(ctx context.Context, task *queue.Task) {
	logger := m.logger.With(
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldCorrelationID, uuid.NewString()))

	if err := m.runStages(ctx, logger, task); err != nil {
		m.handleStageFailure(ctx, logger, task, err)
		return
	}

	m.notifyFinished(ctx, logger, task)
}

func (m *Manager) runStages(ctx context.Context, logger *slog.Logger, task *queue.Task) error {
	if task.File == "" {
		logger.Info("acquiring media",
			logging.String(logging.FieldStage, "acquire"),
			logging.String("url", task.URL))
		filename, err := m.media.Acquire(ctx, task.URL, m.cfg.Paths.FilesDir)
		if err != nil {
			return err
		}
		if err := m.store.UpdateSourceFile(ctx, task.ID, filename); err != nil {
			return err
		}
		task.File = filename
	}

	mediaPath := filepath.Join(m.cfg.Paths.FilesDir, task.File)
	logger.Info("transcribing media",
		logging.String(logging.FieldStage, "transcribe"),
		logging.String("file", task.File),
		logging.String("model", m.transcriber.Model()))
	result, err := m.transcriber.Transcribe(ctx, mediaPath)
	if err != nil {
		return err
	}

	subs := subtitle.Document(result.Segments)
	if err := m.store.UpdateResult(ctx, task.ID, result.Text, subs); err != nil {
		return err
	}
	logger.Info("transcript persisted",
		logging.String(logging.FieldStage, "persist"),
		logging.Int("segments", len(result.Segments)))
	return nil
}

func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, task *queue.Task, stageErr error) {
	m.setLastError(stageErr)

	// Store writes on this path must survive cancellation of the worker
	// context, or an interrupted task would keep its claim forever.
	storeCtx := context.WithoutCancel(ctx)

	// A canceled external tool usually surfaces as a killed-process error
	// rather than context.Canceled, so check the context itself too.
	if ctx.Err() != nil || errors.Is(stageErr, context.Canceled) {
		logger.Info("task interrupted by shutdown, claim released",
			logging.String(logging.FieldEventType, "task_interrupted"))
		if err := m.store.ReleaseClaim(storeCtx, task.ID); err != nil {
			logger.Error("failed to release interrupted task", logging.Error(err))
		}
		return
	}

	exhausted := task.Attempts+1 >= m.cfg.Workflow.MaxAttempts
	if services.Permanent(stageErr) || exhausted {
		logger.Error("task failed permanently",
			logging.Error(stageErr),
			logging.Int("attempts", task.Attempts+1),
			logging.String(logging.FieldEventType, "task_failed"))
		if err := m.store.MarkFailed(storeCtx, task.ID, stageErr.Error()); err != nil {
			logger.Error("failed to record task failure", logging.Error(err))
		}
		return
	}

	logger.Warn("stage failed, task released for retry",
		logging.Error(stageErr),
		logging.Int("attempts", task.Attempts+1),
		logging.String(logging.FieldEventType, "task_retried"))
	if err := m.store.ReleaseForRetry(storeCtx, task.ID, stageErr.Error()); err != nil {
		logger.Error("failed to release task for retry", logging.Error(err))
	}
}

// notifyFinished delivers the completion notice and marks the task done on
// success. A send failure leaves the task finished but not done so the
// backlog sweep can retry delivery later.
func (m *Manager) notifyFinished(ctx context.Context, logger *slog.Logger, task *queue.Task) {
	// Once the notice is on the wire, failing to record the outcome would
	// re-send it on the next backlog sweep, so these writes are detached
	// from the worker context.
	storeCtx := context.WithoutCancel(ctx)

	fresh, err := m.store.Get(storeCtx, task.ID)
	if err != nil {
		logger.Error("failed to reload finished task", logging.Error(err))
		return
	}
	if err := m.notifier.NotifyTaskComplete(ctx, fresh); err != nil {
		logger.Warn("completion notice failed, will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notify_deferred"))
		if recErr := m.store.RecordNotifyFailure(storeCtx, task.ID, err.Error()); recErr != nil {
			logger.Error("failed to record notify failure", logging.Error(recErr))
		}
		return
	}
	if err := m.store.MarkDone(storeCtx, task.ID); err != nil {
		logger.Error("failed to mark task done", logging.Error(err))
		return
	}
	logger.Info("task complete", logging.String(logging.FieldEventType, "task_done"))
}

// flushNotifyBacklog retries delivery for finished tasks whose notice has
// not gone out yet.
func (m *Manager) flushNotifyBacklog(ctx context.Context) {
	storeCtx := context.WithoutCancel(ctx)
	tasks, err := m.store.NotifyBacklog(ctx, m.cfg.Workflow.NotifyMaxAttempts)
	if err != nil {
		m.logger.Error("failed to load notify backlog", logging.Error(err))
		return
	}
	for _, task := range tasks {
		if ctx.Err() != nil {
			return
		}
		logger := m.logger.With(logging.Int64(logging.FieldTaskID, task.ID))
		if err := m.notifier.NotifyTaskComplete(ctx, task); err != nil {
			logger.Warn("backlog notice failed", logging.Error(err))
			if recErr := m.store.RecordNotifyFailure(storeCtx, task.ID, err.Error()); recErr != nil {
				logger.Error("failed to record notify failure", logging.Error(recErr))
			}
			continue
		}
		if err := m.store.MarkDone(storeCtx, task.ID); err != nil {
			logger.Error("failed to mark task done", logging.Error(err))
			continue
		}
		logger.Info("task complete", logging.String(logging.FieldEventType, "task_done"))
	}
}
