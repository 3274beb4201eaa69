package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyCreatesDirectoryAndKeepsMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "episode.mkv")
	if err := os.WriteFile(src, []byte("frames"), 0o600); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "cache", "nested", "episode.mkv")

	if err := Copy(src, dst); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "frames" {
		t.Fatalf("content mismatch: %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source should remain after copy: %v", err)
	}
}

func TestCopyReplacesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "new.mkv")
	dst := filepath.Join(dir, "old.mkv")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("previous contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Copy(src, dst); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "new" {
		t.Fatalf("expected destination replaced, got %q", got)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestCopyRejectsMissingAndDirectorySources(t *testing.T) {
	dir := t.TempDir()
	if err := Copy(filepath.Join(dir, "absent.mkv"), filepath.Join(dir, "out.mkv")); err == nil {
		t.Fatal("expected missing source to fail")
	}
	if err := Copy(dir, filepath.Join(dir, "out.mkv")); err == nil {
		t.Fatal("expected directory source to fail")
	}
}

func TestMoveRenamesIntoNewDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "out.mkv")
	dst := filepath.Join(dir, "library", "show", "out.mkv")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Move(src, dst); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, stat err=%v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "payload" {
		t.Fatalf("unexpected destination %q err=%v", got, err)
	}
}

func TestMoveMissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	if err := Move(filepath.Join(dir, "gone.mkv"), filepath.Join(dir, "dst.mkv")); err == nil {
		t.Fatal("expected error for missing source")
	}
}
