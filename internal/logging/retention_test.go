package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCleanupOldLogsHonorsPatternAgeAndExclusions(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().AddDate(0, 0, -10)
	write := func(name string, mod time.Time) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
		return path
	}
	stale := write("reel-20250101T000000.log", old)
	kept := write("reel-20250102T000000.log", old)
	fresh := write("reel-20250103T000000.log", time.Now())
	other := write("notes.txt", old)

	removed := CleanupOldLogs(nil, 7, RetentionTarget{Dir: dir, Pattern: "reel-*.log", Exclude: []string{kept}})
	if removed != 1 {
		t.Fatalf("expected one file removed, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale log removed, stat err=%v", err)
	}
	for _, path := range []string{kept, fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", filepath.Base(path), err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reel-old.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().AddDate(-1, 0, 0)
	_ = os.Chtimes(path, old, old)
	if removed := CleanupOldLogs(nil, 0, RetentionTarget{Dir: dir, Pattern: "reel-*.log"}); removed != 0 {
		t.Fatalf("expected retention 0 to keep files, removed %d", removed)
	}
}
