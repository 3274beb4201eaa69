package worker

import (
	"bufio"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reel/internal/runner"
	"reel/internal/testsupport"
)

func TestExecutePausePreservesExitCode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	w := newTestWorker(t, cfg)
	dir := testsupport.BaseDir(cfg)
	rc := &runner.Context{
		Pass:    1,
		FileOut: filepath.Join(dir, "out", "x.mkv"),
		ExecCommand: []string{"/bin/sh", "-c",
			"for i in 1 2 3 4 5; do echo tick $i; sleep 0.1; done; exit 3"},
		ProgressParser: runner.PercentParser{},
	}
	tlog := &taskLog{tail: w.tail}

	done := make(chan execOutcome, 1)
	begin := time.Now()
	go func() { done <- w.execute(context.Background(), rc, tlog) }()

	time.Sleep(150 * time.Millisecond)
	w.Pause()
	time.Sleep(500 * time.Millisecond)
	w.Resume()

	var outcome execOutcome
	select {
	case outcome = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("subprocess did not finish")
	}
	wall := time.Since(begin)

	if outcome.success {
		t.Fatal("non-zero exit must fail the stage")
	}
	if outcome.exitCode != 3 {
		t.Fatalf("exit code = %d, want 3", outcome.exitCode)
	}
	if outcome.killed {
		t.Fatal("paused process must not be reported as killed")
	}
	if wall-outcome.elapsed < 300*time.Millisecond {
		t.Fatalf("paused time not excluded: wall %v elapsed %v", wall, outcome.elapsed)
	}
	if !strings.Contains(tlog.String(), "tick 5") {
		t.Fatalf("log missing output:\n%s", tlog.String())
	}
}

func TestExecuteWatchdogKillsProcessGroup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workers.SubprocessTimeoutSeconds = 1
	w := newTestWorker(t, cfg)
	rc := &runner.Context{
		Pass:        1,
		FileOut:     filepath.Join(testsupport.BaseDir(cfg), "out", "x.mkv"),
		ExecCommand: []string{"/bin/sh", "-c", "sleep 30 & wait"},
	}
	tlog := &taskLog{tail: w.tail}

	begin := time.Now()
	outcome := w.execute(context.Background(), rc, tlog)

	if outcome.success || !outcome.killed {
		t.Fatalf("expected watchdog kill, got %+v", outcome)
	}
	if time.Since(begin) > 10*time.Second {
		t.Fatal("watchdog did not stop the subprocess promptly")
	}
}

func TestExecuteCancelKillsSubprocess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	w := newTestWorker(t, cfg)
	rc := &runner.Context{
		Pass:        1,
		FileOut:     filepath.Join(testsupport.BaseDir(cfg), "out", "x.mkv"),
		ExecCommand: []string{"/bin/sh", "-c", "echo started; sleep 30"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	outcome := w.execute(ctx, rc, &taskLog{tail: w.tail})
	if outcome.success || !outcome.killed {
		t.Fatalf("expected cancellation kill, got %+v", outcome)
	}
}

func TestExecuteMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	w := newTestWorker(t, cfg)
	rc := &runner.Context{
		Pass:        1,
		FileOut:     filepath.Join(testsupport.BaseDir(cfg), "out", "x.mkv"),
		ExecCommand: []string{"definitely-not-a-real-binary"},
	}
	tlog := &taskLog{tail: w.tail}
	outcome := w.execute(context.Background(), rc, tlog)
	if outcome.success {
		t.Fatal("missing binary must fail")
	}
	if !strings.Contains(tlog.String(), "start failed") {
		t.Fatalf("log missing start failure:\n%s", tlog.String())
	}
}

func TestScanLinesOrCR(t *testing.T) {
	input := "frame=1\rframe=2\rdone\r\nnext line\nlast"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanLinesOrCR)
	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	want := []string{"frame=1", "frame=2", "done", "next line", "last"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("tokens = %q, want %q", got, want)
	}
}

func TestLogTailKeepsMostRecentLines(t *testing.T) {
	tail := newLogTail(3)
	tail.Write("one\ntwo\nthr")
	tail.Write("ee\nfour\nfive")
	got := tail.Lines()
	want := []string{"four", "five"}
	if len(got) != 3 || got[0] != "three" || got[1] != want[0] || got[2] != want[1] {
		t.Fatalf("Lines = %q", got)
	}
	tail.Reset()
	if len(tail.Lines()) != 0 {
		t.Fatal("expected empty tail after reset")
	}
}
