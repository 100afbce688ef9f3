package testsupport

import (
	"context"
	"testing"

	"scribe/internal/config"
	"scribe/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewURLTask inserts a URL-sourced task for tests using the provided store.
func NewURLTask(t testing.TB, store *queue.Store, owner, url string) *queue.Task {
	t.Helper()

	task, err := store.Insert(context.Background(), owner, "", url)
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return task
}

// NewFileTask inserts a file-sourced task for tests using the provided store.
func NewFileTask(t testing.TB, store *queue.Store, owner, file string) *queue.Task {
	t.Helper()

	task, err := store.Insert(context.Background(), owner, file, "")
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return task
}
