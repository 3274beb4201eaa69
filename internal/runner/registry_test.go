package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"reel/internal/config"
	"reel/internal/runner"
	"reel/internal/services"
	"reel/internal/testsupport"
)

type namedRunner struct{ id string }

func (n namedRunner) ID() string { return n.id }
func (n namedRunner) Name() string { return strings.ToUpper(n.id) }
func (n namedRunner) Run(context.Context, *runner.Context) error { return nil }

func ids(runners []runner.Runner) []string {
	out := make([]string, 0, len(runners))
	for _, r := range runners {
		out = append(out, r.ID())
	}
	return out
}

func TestRegistryOrderedFiltersByLibrary(t *testing.T) {
	reg := runner.NewRegistry()
	reg.Register(namedRunner{"probe"})
	reg.Register(namedRunner{"movies"}, 2)
	reg.Register(namedRunner{"both"}, 1, 2)

	if got := ids(reg.Ordered(1)); !reflect.DeepEqual(got, []string{"probe", "both"}) {
		t.Fatalf("library 1 = %v", got)
	}
	if got := ids(reg.Ordered(2)); !reflect.DeepEqual(got, []string{"probe", "movies", "both"}) {
		t.Fatalf("library 2 = %v", got)
	}
	if got := ids(reg.Ordered(7)); !reflect.DeepEqual(got, []string{"probe"}) {
		t.Fatalf("library 7 = %v", got)
	}
}

func TestRegistryValidate(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg"))

	reg, err := runner.FromRunners([]config.Runner{
		{ID: "remux", Name: "Remux", Type: "command", Command: "ffmpeg", Enabled: true, Passes: 1},
		{ID: "skip", Name: "Skip", Type: "command", Command: "nothing-here", Enabled: false, Passes: 1},
		{ID: "stash", Name: "Stash", Type: "copy", Enabled: true, Passes: 1},
	})
	if err != nil {
		t.Fatalf("FromRunners: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected disabled runner skipped, got %d", reg.Len())
	}
	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	reg.Register(namedRunner{"remux"})
	if err := reg.Validate(); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}

	missing, err := runner.FromRunners([]config.Runner{
		{ID: "x", Name: "X", Type: "command", Command: "definitely-missing-binary", Enabled: true, Passes: 1},
	})
	if err != nil {
		t.Fatalf("FromRunners: %v", err)
	}
	err = missing.Validate()
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "definitely-missing-binary") {
		t.Fatalf("expected missing binary error, got %v", err)
	}
	health := missing.Health(context.Background())
	if len(health) != 1 || health[0].Ready {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestFromConfigRejectsUnknownType(t *testing.T) {
	if _, err := runner.FromConfig(config.Runner{ID: "x", Type: "teleport"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCommandRunnerExpandsPlaceholders(t *testing.T) {
	r, err := runner.FromConfig(config.Runner{
		ID: "remux", Name: "Remux", Type: "command", Command: "ffmpeg",
		Args:      []string{"-i", "{file_in}", "-metadata", "source={original}", "-tag", "lib{library_id}-p{pass}", "{file_out}"},
		Extension: ".mkv", Passes: 2, Progress: "ffmpeg",
	})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	rc := &runner.Context{
		LibraryID: 3, Pass: 1,
		FileIn: "/in/a.mp4", FileOut: "/cache/a-WORKING-1-1.mp4", OriginalFilePath: "/in/a.mp4",
	}
	if err := r.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"ffmpeg", "-i", "/in/a.mp4", "-metadata", "source=/in/a.mp4", "-tag", "lib3-p1", "/cache/a-WORKING-1-1.mkv"}
	if !reflect.DeepEqual(rc.ExecCommand, want) {
		t.Fatalf("ExecCommand = %v", rc.ExecCommand)
	}
	if rc.FileOut != "/cache/a-WORKING-1-1.mkv" {
		t.Fatalf("FileOut = %q", rc.FileOut)
	}
	if !rc.Repeat {
		t.Fatal("expected repeat on first of two passes")
	}
	if _, ok := rc.ProgressParser.(*runner.FFmpegParser); !ok {
		t.Fatalf("unexpected parser %T", rc.ProgressParser)
	}

	rc = &runner.Context{Pass: 2, FileIn: "/in/a.mp4", FileOut: "/cache/a-WORKING-1-2.mp4"}
	if err := r.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rc.Repeat {
		t.Fatal("final pass must not repeat")
	}
}

func TestDraptoRunnerCommand(t *testing.T) {
	r, err := runner.FromConfig(config.Runner{ID: "encode", Name: "Encode", Type: "drapto", Passes: 1})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	rc := &runner.Context{Pass: 1, FileIn: "/in/a.m2ts", FileOut: "/cache/a-WORKING-1-1.m2ts"}
	if err := r.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"drapto", "encode", "--input", "/in/a.m2ts", "--output", "/cache/a-WORKING-1-1.mkv", "--responsive", "--no-log", "--progress-json"}
	if !reflect.DeepEqual(rc.ExecCommand, want) {
		t.Fatalf("ExecCommand = %v", rc.ExecCommand)
	}
	if _, ok := rc.ProgressParser.(runner.DraptoParser); !ok {
		t.Fatalf("unexpected parser %T", rc.ProgressParser)
	}
}

func TestCopyRunnerWritesOutputWithoutCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mkv")
	testsupport.WriteFile(t, in, 64)
	r, err := runner.FromConfig(config.Runner{ID: "stash", Name: "Stash", Type: "copy", Passes: 1})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	rc := &runner.Context{Pass: 1, FileIn: in, FileOut: filepath.Join(dir, "out", "in-WORKING-1-1.mkv")}
	if err := r.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rc.ExecCommand) != 0 {
		t.Fatalf("copy runner must not request a command: %v", rc.ExecCommand)
	}
	info, err := os.Stat(rc.FileOut)
	if err != nil || info.Size() != 64 {
		t.Fatalf("copy output: %v %v", info, err)
	}
}
