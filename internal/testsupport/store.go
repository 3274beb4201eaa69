package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"reel/internal/config"
	"reel/internal/queue"
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

// EnqueueSource creates a pending task for a file under the config's base
// directory. Priority is left at its default when priority is nil.
func EnqueueSource(t testing.TB, store *queue.Store, cfg *config.Config, name string, priority *int64) int64 {
	t.Helper()

	id, err := store.Enqueue(context.Background(), queue.NewTask{
		SourcePath: filepath.Join(BaseDir(cfg), "library", name),
		Priority:   priority,
	})
	if err != nil {
		t.Fatalf("store.Enqueue(%s): %v", name, err)
	}
	return id
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
