package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/queue"
	"scribe/internal/services"
	"scribe/internal/testsupport"
	"scribe/internal/transcribe"
)

const whisperPayload = `{"text":" hi there","segments":[{"start":0,"end":1,"text":" hi there"}]}`

type fakeNotifier struct {
	mu       sync.Mutex
	failures int
	notified []int64
}

func (f *fakeNotifier) NotifyTaskComplete(_ context.Context, task *queue.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return services.Wrap(services.ErrTransient, "notifications", "notify", "smtp unreachable", nil)
	}
	f.notified = append(f.notified, task.ID)
	return nil
}

func (f *fakeNotifier) TestNotification(context.Context) error { return nil }

func (f *fakeNotifier) notifiedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.notified...)
}

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// fakeDownload mimics yt-dlp: it drops an audio file named by media id into
// the output directory and prints the metadata document.
func fakeDownload(id string) media.CommandRunner {
	return func(_ context.Context, _ string, args ...string) ([]byte, error) {
		template := argValue(args, "--output")
		path := filepath.Join(filepath.Dir(template), id+".mp3")
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			return nil, err
		}
		return []byte(`{"id":"` + id + `"}`), nil
	}
}

// fakeWhisper mimics the whisper CLI by writing payload as the JSON output
// document for the given media file.
func fakeWhisper(payload string) transcribe.CommandRunner {
	return func(_ context.Context, _ string, args ...string) error {
		base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		jsonPath := filepath.Join(argValue(args, "--output_dir"), base+".json")
		return os.WriteFile(jsonPath, []byte(payload), 0o644)
	}
}

type env struct {
	cfg      *config.Config
	store    *queue.Store
	notifier *fakeNotifier
	manager  *Manager
}

func newEnv(t *testing.T, opts ...testsupport.ConfigOption) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &fakeNotifier{}
	mediaClient := media.NewClient(cfg.Downloader).WithCommandRunner(fakeDownload("abc"))
	transcriber := transcribe.NewClient(cfg.Transcriber).WithCommandRunner(fakeWhisper(whisperPayload))
	manager := NewManagerWithClients(cfg, store, logging.NewNop(), notifier, mediaClient, transcriber)
	return &env{cfg: cfg, store: store, notifier: notifier, manager: manager}
}

func (e *env) claimOne(t *testing.T) *queue.Task {
	t.Helper()
	tasks, err := e.store.ClaimNextBatch(context.Background())
	if err != nil {
		t.Fatalf("ClaimNextBatch: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one claimed task, got %d", len(tasks))
	}
	return tasks[0]
}

func (e *env) reload(t *testing.T, id int64) *queue.Task {
	t.Helper()
	task, err := e.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return task
}

func TestProcessTaskURLSourceEndToEnd(t *testing.T) {
	e := newEnv(t)
	testsupport.NewURLTask(t, e.store, "viewer@example.com", "https://example.com/watch?v=abc")

	e.manager.processTask(context.Background(), e.claimOne(t))

	got := e.reload(t, 1)
	if got.State() != "done" {
		t.Fatalf("expected done task, got %q (%+v)", got.State(), got)
	}
	if got.File != "abc.mp3" {
		t.Errorf("expected acquired filename abc.mp3, got %q", got.File)
	}
	if got.ResultText != "hi there" {
		t.Errorf("unexpected transcript text %q", got.ResultText)
	}
	want := "0:00:00,000 --> 0:00:01,000\nhi there\n\n"
	if got.ResultSubtitles != want {
		t.Errorf("unexpected subtitles %q, want %q", got.ResultSubtitles, want)
	}
	if ids := e.notifier.notifiedIDs(); len(ids) != 1 || ids[0] != got.ID {
		t.Errorf("expected one notification for task %d, got %v", got.ID, ids)
	}
	if _, err := os.Stat(filepath.Join(e.cfg.Paths.FilesDir, "abc.mp3")); err != nil {
		t.Errorf("expected downloaded media on disk: %v", err)
	}
}

func TestProcessTaskFileSourceSkipsAcquire(t *testing.T) {
	e := newEnv(t)
	e.manager.media = media.NewClient(e.cfg.Downloader).WithCommandRunner(
		func(context.Context, string, ...string) ([]byte, error) {
			t.Fatal("acquire must not run for file-sourced tasks")
			return nil, nil
		})
	testsupport.WriteFile(t, filepath.Join(e.cfg.Paths.FilesDir, "talk.mp3"), "audio")
	testsupport.NewFileTask(t, e.store, "viewer@example.com", "talk.mp3")

	e.manager.processTask(context.Background(), e.claimOne(t))

	got := e.reload(t, 1)
	if got.State() != "done" {
		t.Fatalf("expected done task, got %q", got.State())
	}
	if got.ResultText != "hi there" {
		t.Errorf("unexpected transcript text %q", got.ResultText)
	}
}

func TestTransientStageFailureReleasesForRetry(t *testing.T) {
	e := newEnv(t)
	e.manager.transcriber = transcribe.NewClient(e.cfg.Transcriber).WithCommandRunner(
		func(context.Context, string, ...string) error {
			return errors.New("whisper crashed")
		})
	testsupport.WriteFile(t, filepath.Join(e.cfg.Paths.FilesDir, "talk.mp3"), "audio")
	testsupport.NewFileTask(t, e.store, "viewer@example.com", "talk.mp3")

	e.manager.processTask(context.Background(), e.claimOne(t))

	got := e.reload(t, 1)
	if !got.Pending() {
		t.Fatalf("expected task released to pending, got %q", got.State())
	}
	if got.Attempts != 1 {
		t.Errorf("expected one recorded attempt, got %d", got.Attempts)
	}
	if !strings.Contains(got.LastError, "whisper crashed") {
		t.Errorf("expected last error to name the failure, got %q", got.LastError)
	}
	if len(e.notifier.notifiedIDs()) != 0 {
		t.Error("failed task must not be notified")
	}
}

func TestExhaustedAttemptsMarkTaskFailed(t *testing.T) {
	e := newEnv(t, testsupport.WithMaxAttempts(1))
	e.manager.transcriber = transcribe.NewClient(e.cfg.Transcriber).WithCommandRunner(
		func(context.Context, string, ...string) error {
			return errors.New("whisper crashed")
		})
	testsupport.WriteFile(t, filepath.Join(e.cfg.Paths.FilesDir, "talk.mp3"), "audio")
	testsupport.NewFileTask(t, e.store, "viewer@example.com", "talk.mp3")

	e.manager.processTask(context.Background(), e.claimOne(t))

	got := e.reload(t, 1)
	if !got.Failed() {
		t.Fatalf("expected failed task, got %q", got.State())
	}
}

func TestPermanentFailureSkipsRetry(t *testing.T) {
	e := newEnv(t)
	e.manager.media = media.NewClient(e.cfg.Downloader).WithCommandRunner(
		func(context.Context, string, ...string) ([]byte, error) {
			return nil, errors.New("ERROR: Unsupported URL: https://example.com/nope")
		})
	testsupport.NewURLTask(t, e.store, "viewer@example.com", "https://example.com/nope")

	e.manager.processTask(context.Background(), e.claimOne(t))

	got := e.reload(t, 1)
	if !got.Failed() {
		t.Fatalf("expected failed task on unsupported URL, got %q", got.State())
	}
	if !strings.Contains(got.LastError, "Unsupported URL") {
		t.Errorf("expected last error to carry tool output, got %q", got.LastError)
	}
}

func TestNotifyFailureLeavesTaskFinishedForBacklog(t *testing.T) {
	e := newEnv(t)
	e.notifier.failures = 1
	testsupport.WriteFile(t, filepath.Join(e.cfg.Paths.FilesDir, "talk.mp3"), "audio")
	testsupport.NewFileTask(t, e.store, "viewer@example.com", "talk.mp3")

	e.manager.processTask(context.Background(), e.claimOne(t))

	got := e.reload(t, 1)
	if got.State() != "finished" {
		t.Fatalf("expected finished but undelivered task, got %q", got.State())
	}
	if got.NotifyAttempts != 1 {
		t.Errorf("expected one notify attempt recorded, got %d", got.NotifyAttempts)
	}

	e.manager.flushNotifyBacklog(context.Background())

	got = e.reload(t, 1)
	if got.State() != "done" {
		t.Fatalf("expected done after backlog flush, got %q", got.State())
	}
	if ids := e.notifier.notifiedIDs(); len(ids) != 1 {
		t.Errorf("expected exactly one delivered notice, got %v", ids)
	}
}

func TestNotifyBacklogGivesUpAfterBudget(t *testing.T) {
	e := newEnv(t)
	e.notifier.failures = e.cfg.Workflow.NotifyMaxAttempts + 1
	testsupport.WriteFile(t, filepath.Join(e.cfg.Paths.FilesDir, "talk.mp3"), "audio")
	testsupport.NewFileTask(t, e.store, "viewer@example.com", "talk.mp3")

	e.manager.processTask(context.Background(), e.claimOne(t))
	for i := 0; i < e.cfg.Workflow.NotifyMaxAttempts+2; i++ {
		e.manager.flushNotifyBacklog(context.Background())
	}

	got := e.reload(t, 1)
	if got.State() != "finished" {
		t.Fatalf("expected task left finished, got %q", got.State())
	}
	if got.NotifyAttempts != e.cfg.Workflow.NotifyMaxAttempts {
		t.Errorf("expected notify attempts capped at %d, got %d",
			e.cfg.Workflow.NotifyMaxAttempts, got.NotifyAttempts)
	}
}

func TestShutdownMidBatchReleasesClaims(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancellation during an external tool run surfaces as a killed
	// process, not context.Canceled.
	e.manager.transcriber = transcribe.NewClient(e.cfg.Transcriber).WithCommandRunner(
		func(context.Context, string, ...string) error {
			cancel()
			return errors.New("signal: killed")
		})
	testsupport.WriteFile(t, filepath.Join(e.cfg.Paths.FilesDir, "a.mp3"), "audio")
	testsupport.WriteFile(t, filepath.Join(e.cfg.Paths.FilesDir, "b.mp3"), "audio")
	testsupport.NewFileTask(t, e.store, "viewer@example.com", "a.mp3")
	testsupport.NewFileTask(t, e.store, "viewer@example.com", "b.mp3")

	if err := e.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("transcriber was never invoked")
	}
	e.manager.Stop()

	for _, id := range []int64{1, 2} {
		got := e.reload(t, id)
		if !got.Pending() {
			t.Fatalf("expected task %d released to pending after shutdown, got %q", id, got.State())
		}
		if got.Attempts != 0 {
			t.Errorf("shutdown must not consume an attempt on task %d, got %d", id, got.Attempts)
		}
	}

	tasks, err := e.store.ClaimNextBatch(context.Background())
	if err != nil {
		t.Fatalf("ClaimNextBatch after shutdown: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected both tasks claimable again, got %d", len(tasks))
	}
}

// cancelingNotifier cancels the worker context just before delivering,
// mimicking a shutdown that lands while the notice is on the wire.
type cancelingNotifier struct {
	inner  *fakeNotifier
	cancel context.CancelFunc
}

func (c cancelingNotifier) NotifyTaskComplete(ctx context.Context, task *queue.Task) error {
	c.cancel()
	return c.inner.NotifyTaskComplete(ctx, task)
}

func (c cancelingNotifier) TestNotification(ctx context.Context) error {
	return c.inner.TestNotification(ctx)
}

func TestMarkDoneSurvivesCancellationDuringNotify(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.manager.notifier = cancelingNotifier{inner: e.notifier, cancel: cancel}

	testsupport.WriteFile(t, filepath.Join(e.cfg.Paths.FilesDir, "talk.mp3"), "audio")
	testsupport.NewFileTask(t, e.store, "viewer@example.com", "talk.mp3")

	e.manager.processTask(ctx, e.claimOne(t))

	got := e.reload(t, 1)
	if got.State() != "done" {
		t.Fatalf("expected delivered task marked done despite cancellation, got %q", got.State())
	}

	e.manager.flushNotifyBacklog(context.Background())
	if ids := e.notifier.notifiedIDs(); len(ids) != 1 {
		t.Fatalf("expected exactly one delivered notice, got %v", ids)
	}
}

func TestManagerRunLoopDrainsQueue(t *testing.T) {
	e := newEnv(t)
	e.manager.idleInterval = 5 * time.Millisecond
	testsupport.NewURLTask(t, e.store, "viewer@example.com", "https://example.com/watch?v=abc")

	if err := e.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.manager.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for {
		got := e.reload(t, 1)
		if got.Done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task never completed, state %q, last error %v", got.State(), e.manager.LastError())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := e.manager.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail while running")
	}
	e.manager.Stop()
	e.manager.Stop()
}
