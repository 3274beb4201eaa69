package deps

import (
	"os"
	"path/filepath"
	"testing"

	"reel/internal/config"
)

func stubBinary(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func TestCheckBinariesReportsMissingAndUnconfigured(t *testing.T) {
	present := stubBinary(t, t.TempDir(), "mkvmerge")
	results := CheckBinaries([]Requirement{
		{Name: "mux", Command: present},
		{Name: "tag", Command: "reel-test-no-such-binary"},
		{Name: "blank", Command: "  "},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected stub to resolve cleanly, got %+v", results[0])
	}
	if results[1].Available || results[1].Command != "reel-test-no-such-binary" || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %+v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected unconfigured command, got %+v", results[2])
	}
}

func TestDraptoFFmpegResolution(t *testing.T) {
	t.Run("sidecar wins", func(t *testing.T) {
		dir := t.TempDir()
		drapto := stubBinary(t, dir, "drapto")
		sidecar := stubBinary(t, dir, "ffmpeg")
		pathDir := t.TempDir()
		stubBinary(t, pathDir, "ffmpeg")
		t.Setenv("PATH", pathDir)

		status := draptoFFmpeg("encode", drapto)
		if !status.Available || status.Command != sidecar || status.Name != "encode/ffmpeg" {
			t.Fatalf("expected sidecar ffmpeg, got %+v", status)
		}
	})
	t.Run("path fallback", func(t *testing.T) {
		drapto := stubBinary(t, t.TempDir(), "drapto")
		pathDir := t.TempDir()
		onPath := stubBinary(t, pathDir, "ffmpeg")
		t.Setenv("PATH", pathDir)

		status := draptoFFmpeg("encode", drapto)
		if !status.Available || status.Command != onPath {
			t.Fatalf("expected PATH ffmpeg, got %+v", status)
		}
	})
	t.Run("missing", func(t *testing.T) {
		drapto := stubBinary(t, t.TempDir(), "drapto")
		t.Setenv("PATH", "")

		status := draptoFFmpeg("encode", drapto)
		if status.Available || status.Detail == "" {
			t.Fatalf("expected unavailable ffmpeg with detail, got %+v", status)
		}
	})
}

func TestCheckRunnersSkipsDisabledAndCopy(t *testing.T) {
	binDir := t.TempDir()
	stubBinary(t, binDir, "drapto")
	stubBinary(t, binDir, "ffmpeg")
	t.Setenv("PATH", binDir)

	results := CheckRunners([]config.Runner{
		{ID: "remux", Name: "Remux", Type: "command", Command: "ffmpeg", Enabled: true},
		{ID: "encode", Name: "Encode", Type: "drapto", Enabled: true},
		{ID: "stash", Name: "Stash", Type: "copy", Enabled: true},
		{ID: "off", Name: "Off", Type: "command", Command: "missing-tool", Enabled: false},
		{ID: "broken", Name: "Broken", Type: "command", Command: "missing-tool", Enabled: true},
	})

	byName := make(map[string]Status, len(results))
	for _, status := range results {
		byName[status.Name] = status
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 statuses, got %#v", results)
	}
	if !byName["remux"].Available || !byName["encode"].Available || !byName["encode/ffmpeg"].Available {
		t.Fatalf("expected stubs to resolve: %#v", results)
	}
	if byName["broken"].Available || byName["broken"].Detail == "" {
		t.Fatalf("expected missing binary detail: %#v", byName["broken"])
	}
	if _, ok := byName["off"]; ok {
		t.Fatal("disabled runner should not be checked")
	}
}
