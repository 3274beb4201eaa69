package queue

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reel/internal/services"
)

func TestOpenPathRejectsSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "reel.db")

	store, err := OpenPath(dbPath, dir)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := store.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	store.Close()

	if _, err := OpenPath(dbPath, dir); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRetryOnBusyRetriesThenWrapsTransient(t *testing.T) {
	attempts := 0
	err := retryOnBusy(context.Background(), func() error {
		attempts++
		return errors.New("database is locked (5) (SQLITE_BUSY)")
	})
	if attempts != busyRetryAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, busyRetryAttempts)
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}

	attempts = 0
	err = retryOnBusy(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Fatalf("retryOnBusy = %v after %d attempts", err, attempts)
	}

	boom := errors.New("boom")
	attempts = 0
	if err := retryOnBusy(context.Background(), func() error { attempts++; return boom }); !errors.Is(err, boom) || attempts != 1 {
		t.Fatalf("non-busy errors must not retry: %v after %d", err, attempts)
	}
}

func TestTimestampsUseStoreClock(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenPath(filepath.Join(dir, "reel.db"), filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer store.Close()

	fixed := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	id, err := store.Enqueue(ctx, NewTask{SourcePath: filepath.Join(dir, "Movie.Title.mkv")})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	task, err := store.ClaimNext(ctx, ClaimFilter{}, "W1")
	if err != nil || task == nil || task.ID != id {
		t.Fatalf("ClaimNext = %#v, %v", task, err)
	}
	if !task.StartTime.Equal(fixed) || !task.CreatedAt.Equal(fixed) {
		t.Fatalf("timestamps = %v / %v, want %v", task.StartTime, task.CreatedAt, fixed)
	}
	wantSuffix := "Movie.Title-" + "1709985600000" + ".mkv"
	if !strings.HasSuffix(task.CachePath, wantSuffix) {
		t.Fatalf("cache path %q does not end with %q", task.CachePath, wantSuffix)
	}
}

func TestBuildCachePath(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	got := BuildCachePath("/cache", "/media/in/Show S01E01.mp4", now)
	dir := filepath.Dir(got)
	if filepath.Dir(dir) != "/cache" {
		t.Fatalf("unexpected parent for %q", got)
	}
	if !strings.HasPrefix(filepath.Base(dir), "reel_file_conversion-1700000000123-") {
		t.Fatalf("unexpected directory %q", filepath.Base(dir))
	}
	if filepath.Base(got) != "Show S01E01-1700000000123.mp4" {
		t.Fatalf("unexpected file %q", filepath.Base(got))
	}
	if other := BuildCachePath("/cache", "/media/in/Show S01E01.mp4", now); other == got {
		t.Fatal("expected distinct directories for repeated runs")
	}
}

func TestFilterClause(t *testing.T) {
	clause, args := filterClause(ClaimFilter{})
	if clause != "" || args != nil {
		t.Fatalf("empty filter = %q %v", clause, args)
	}
	clause, args = filterClause(ClaimFilter{LibraryIDs: []int64{1, 2}, Kinds: []Kind{KindRemote}})
	if clause != " AND library_id IN (?,?) AND kind IN (?)" {
		t.Fatalf("clause = %q", clause)
	}
	if len(args) != 3 {
		t.Fatalf("args = %v", args)
	}
}
