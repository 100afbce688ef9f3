package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/notifications"
	"scribe/internal/queue"
	"scribe/internal/transcribe"
)

// Manager coordinates queue processing against the transcription pipeline.
type Manager struct {
	cfg         *config.Config
	store       *queue.Store
	logger      *slog.Logger
	notifier    notifications.Service
	media       *media.Client
	transcriber *transcribe.Client

	idleInterval  time.Duration
	batchPause    time.Duration
	errorInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a manager with the default external tool clients.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithClients(cfg, store, logger,
		notifications.NewService(cfg, logger),
		media.NewClient(cfg.Downloader),
		transcribe.NewClient(cfg.Transcriber))
}

// NewManagerWithClients constructs a manager with injected collaborators
// (used in tests).
func NewManagerWithClients(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service, mediaClient *media.Client, transcriber *transcribe.Client) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logging.NewComponentLogger(logger, "worker"),
		notifier:      notifier,
		media:         mediaClient,
		transcriber:   transcriber,
		idleInterval:  time.Duration(cfg.Workflow.IdlePollInterval) * time.Second,
		batchPause:    time.Duration(cfg.Workflow.BatchPauseInterval) * time.Second,
		errorInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
	}
}

// Start begins background processing. It returns immediately; work happens
// on a dedicated goroutine until Stop is called or ctx is canceled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for the loop to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// LastError reports the most recent loop-level failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tasks, err := m.store.ClaimNextBatch(ctx)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to claim pending tasks",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"))
			m.sleep(ctx, m.errorInterval)
			continue
		}

		if len(tasks) == 0 {
			m.flushNotifyBacklog(ctx)
			m.sleep(ctx, m.idleInterval)
			continue
		}

		m.logger.Info("claimed batch", logging.Int("tasks", len(tasks)))
		for i, task := range tasks {
			if ctx.Err() != nil {
				m.releaseBatch(context.WithoutCancel(ctx), tasks[i:])
				return
			}
			m.processTask(ctx, task)
		}

		m.flushNotifyBacklog(ctx)
		m.sleep(ctx, m.batchPause)
	}
}

// releaseBatch returns claimed-but-unprocessed tasks to the pending pool so
// a later run picks them up where this one left off.
func (m *Manager) releaseBatch(ctx context.Context, tasks []*queue.Task) {
	for _, task := range tasks {
		if err := m.store.ReleaseClaim(ctx, task.ID); err != nil {
			m.logger.Error("failed to release unprocessed task",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err))
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
