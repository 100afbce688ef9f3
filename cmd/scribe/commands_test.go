package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, err := runCLI(t, env, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestAddURLQueuesTask(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "add-url", "https://example.com/watch?v=abc", "--owner", "viewer@example.com")
	if err != nil {
		t.Fatalf("add-url: %v", err)
	}
	requireContains(t, out, "task #1")

	out, err = runCLI(t, env, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "pending")
	requireContains(t, out, "viewer@example.com")

	out, err = runCLI(t, env, "queue", "show", "1")
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "Task #1")
	requireContains(t, out, "https://example.com/watch?v=abc")
}

func TestAddURLRejectsNonHTTP(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "add-url", "ftp://example.com/file", "--owner", "viewer@example.com"); err == nil {
		t.Fatal("expected non-http url to be rejected")
	}
}

func TestAddURLRequiresOwner(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "add-url", "https://example.com/a"); err == nil {
		t.Fatal("expected missing owner flag to fail")
	}
}

func TestAddFileStagesMediaAndQueuesTask(t *testing.T) {
	env := setupCLITestEnv(t)

	src := filepath.Join(t.TempDir(), "talk.mp3")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	out, err := runCLI(t, env, "add-file", src, "--owner", "viewer@example.com")
	if err != nil {
		t.Fatalf("add-file: %v", err)
	}
	requireContains(t, out, "Queued talk.mp3")

	if _, err := os.Stat(filepath.Join(env.filesDir, "talk.mp3")); err != nil {
		t.Fatalf("expected staged media file: %v", err)
	}
}

func TestAddFileRejectsUnknownExtension(t *testing.T) {
	env := setupCLITestEnv(t)

	src := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(src, []byte("text"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	if _, err := runCLI(t, env, "add-file", src, "--owner", "viewer@example.com"); err == nil {
		t.Fatal("expected unsupported extension to be rejected")
	}
}

func TestQueueListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueStats(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "add-url", "https://example.com/a", "--owner", "viewer@example.com"); err != nil {
		t.Fatalf("add-url: %v", err)
	}
	out, err := runCLI(t, env, "queue", "stats")
	if err != nil {
		t.Fatalf("queue stats: %v", err)
	}
	requireContains(t, out, "Pending")
	requireContains(t, out, "Finished")
}

func TestTestNotifyWithMailDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Mail is disabled")
}
