package foreman_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reel/internal/config"
	"reel/internal/foreman"
	"reel/internal/queue"
	"reel/internal/runner"
	"reel/internal/testsupport"
	"reel/internal/worker"
)

// recordingRunner remembers task ids and optionally blocks until released.
type recordingRunner struct {
	mu      sync.Mutex
	seen    []int64
	release chan struct{}
}

func (r *recordingRunner) ID() string { return "record" }
func (r *recordingRunner) Name() string { return "Record" }

func (r *recordingRunner) Run(ctx context.Context, rc *runner.Context) error {
	r.mu.Lock()
	r.seen = append(r.seen, rc.TaskID)
	r.mu.Unlock()
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *recordingRunner) order() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.seen...)
}

func enqueue(t *testing.T, store *queue.Store, cfg *config.Config, name string, priority *int64) int64 {
	t.Helper()
	testsupport.WriteFile(t, filepath.Join(testsupport.BaseDir(cfg), "library", name), 64)
	return testsupport.EnqueueSource(t, store, cfg, name, priority)
}

func startForeman(t *testing.T, cfg *config.Config, store foreman.TaskStore, reg *runner.Registry) *foreman.Foreman {
	t.Helper()
	f := foreman.New(foreman.Options{Store: store, Registry: reg, Settings: cfg.Workers})
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(f.Stop)
	return f
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func processedCount(t *testing.T, store *queue.Store) int {
	t.Helper()
	n, err := store.Count(context.Background(), queue.StatusProcessed)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func TestForemanDispatchesByPriority(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)
	var ids []int64
	for i, p := range []int64{5, 1, 5, 3} {
		ids = append(ids, enqueue(t, store, cfg, []string{"a.mkv", "b.mkv", "c.mkv", "d.mkv"}[i], testsupport.Int64(p)))
	}
	rec := &recordingRunner{}
	reg := runner.NewRegistry()
	reg.Register(rec)

	startForeman(t, cfg, store, reg)
	waitFor(t, 10*time.Second, "all tasks processed", func() bool { return processedCount(t, store) == 4 })

	want := []int64{ids[0], ids[2], ids[3], ids[1]}
	got := rec.order()
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	for _, id := range ids {
		task, err := store.Get(context.Background(), id)
		if err != nil || task == nil {
			t.Fatalf("Get(%d): %v", id, err)
		}
		if !task.Succeeded() || task.ProcessedBy != "W1" {
			t.Fatalf("task %d: success=%v processed_by=%q", id, task.Success, task.ProcessedBy)
		}
	}
}

func TestForemanShrinkDoesNotInterruptBusyWorkers(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(3))
	store := testsupport.MustOpenStore(t, cfg)
	for _, name := range []string{"a.mkv", "b.mkv", "c.mkv"} {
		enqueue(t, store, cfg, name, nil)
	}
	rec := &recordingRunner{release: make(chan struct{})}
	reg := runner.NewRegistry()
	reg.Register(rec)

	f := startForeman(t, cfg, store, reg)
	busy := func() int {
		n := 0
		for _, w := range f.Workers() {
			if w.State == worker.StateBusy {
				n++
			}
		}
		return n
	}
	waitFor(t, 5*time.Second, "three busy workers", func() bool { return busy() == 3 })

	f.SetWorkerCount(1)
	time.Sleep(10 * cfg.Workers.TickInterval())
	if got := busy(); got != 3 {
		t.Fatalf("busy workers after shrink = %d, want 3", got)
	}
	for _, w := range f.Workers() {
		if w.Redundant {
			t.Fatalf("busy worker %s marked redundant", w.ID)
		}
	}

	close(rec.release)
	waitFor(t, 10*time.Second, "tasks processed", func() bool { return processedCount(t, store) == 3 })
	waitFor(t, 5*time.Second, "pool converges to one worker", func() bool { return len(f.Workers()) == 1 })

	// The survivor is not replaced and the pool stays at one.
	time.Sleep(5 * cfg.Workers.TickInterval())
	if n := len(f.Workers()); n != 1 {
		t.Fatalf("pool size = %d, want 1", n)
	}
	tasks, err := store.List(context.Background(), queue.ListOptions{Statuses: []queue.Status{queue.StatusProcessed}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, task := range tasks {
		if !task.Succeeded() {
			t.Fatalf("task %d failed; busy workers must finish cleanly", task.ID)
		}
	}
}

func TestForemanTerminateReplacesWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)
	reg := runner.NewRegistry()
	reg.Register(&recordingRunner{})

	f := startForeman(t, cfg, store, reg)
	waitFor(t, 5*time.Second, "worker W1 idle", func() bool {
		ws := f.Workers()
		return len(ws) == 1 && ws[0].ID == "W1" && ws[0].State == worker.StateIdle
	})

	if err := f.Terminate("W1"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	waitFor(t, 5*time.Second, "replacement worker", func() bool {
		ws := f.Workers()
		return len(ws) == 1 && !ws[0].Redundant && ws[0].State == worker.StateIdle
	})

	if err := f.Terminate("W9"); !errors.Is(err, foreman.ErrUnknownWorker) {
		t.Fatalf("Terminate unknown = %v, want ErrUnknownWorker", err)
	}
}

// countingRunner records how many times it ran without requesting a command.
type countingRunner struct {
	id    string
	calls atomic.Int32
}

func (r *countingRunner) ID() string { return r.id }
func (r *countingRunner) Name() string { return r.id }
func (r *countingRunner) Run(context.Context, *runner.Context) error {
	r.calls.Add(1)
	return nil
}

func TestForemanTerminateLetsBusyWorkerFinishTask(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)
	id := enqueue(t, store, cfg, "a.mkv", nil)
	rec := &recordingRunner{release: make(chan struct{})}
	tail := &countingRunner{id: "tail"}
	reg := runner.NewRegistry()
	reg.Register(rec)
	reg.Register(tail)

	f := startForeman(t, cfg, store, reg)
	waitFor(t, 5*time.Second, "W1 busy", func() bool {
		ws := f.Workers()
		return len(ws) == 1 && ws[0].ID == "W1" && ws[0].State == worker.StateBusy
	})
	if err := f.Terminate("W1"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	close(rec.release)

	waitFor(t, 10*time.Second, "task processed", func() bool { return processedCount(t, store) == 1 })
	task, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !task.Succeeded() || task.ProcessedBy != "W1" {
		t.Fatalf("success=%v processed_by=%q", task.Success, task.ProcessedBy)
	}
	if tail.calls.Load() != 1 {
		t.Fatalf("second runner ran %d times, want 1", tail.calls.Load())
	}
	waitFor(t, 5*time.Second, "replacement worker", func() bool {
		ws := f.Workers()
		return len(ws) == 1 && !ws[0].Redundant && ws[0].State == worker.StateIdle
	})
}

func TestForemanPauseBlocksDispatch(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)
	reg := runner.NewRegistry()
	reg.Register(&recordingRunner{})

	f := startForeman(t, cfg, store, reg)
	waitFor(t, 5*time.Second, "worker idle", func() bool {
		ws := f.Workers()
		return len(ws) == 1 && ws[0].State == worker.StateIdle
	})
	f.PauseAll()
	enqueue(t, store, cfg, "a.mkv", nil)

	time.Sleep(10 * cfg.Workers.TickInterval())
	if n := processedCount(t, store); n != 0 {
		t.Fatalf("processed while paused: %d", n)
	}

	f.ResumeAll()
	waitFor(t, 5*time.Second, "task processed after resume", func() bool { return processedCount(t, store) == 1 })
}

func TestForemanPausesWorkersWhenRunnersInvalid(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	store := testsupport.MustOpenStore(t, cfg)
	enqueue(t, store, cfg, "a.mkv", nil)
	reg := runner.NewRegistry()
	reg.Register(&recordingRunner{})
	reg.Register(&recordingRunner{})

	f := startForeman(t, cfg, store, reg)
	waitFor(t, 5*time.Second, "workers paused", func() bool {
		ws := f.Workers()
		if len(ws) != 2 {
			return false
		}
		for _, w := range ws {
			if !w.Paused {
				return false
			}
		}
		return true
	})
	time.Sleep(5 * cfg.Workers.TickInterval())
	empty, err := store.IsEmpty(context.Background(), queue.StatusPending)
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if empty {
		t.Fatal("task dispatched despite invalid runner chain")
	}
	if !f.Status(context.Background()).RunnersBlocked {
		t.Fatal("status should report blocked runners")
	}
}

// failingStore breaks on the first pending check.
type failingStore struct {
	foreman.TaskStore
	err error
}

func (s failingStore) IsEmpty(context.Context, queue.Status) (bool, error) { return false, s.err }

func TestForemanFatalTickStopsScheduler(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	store := testsupport.MustOpenStore(t, cfg)
	boom := errors.New("disk I/O error")
	reg := runner.NewRegistry()
	reg.Register(&recordingRunner{})

	f := startForeman(t, cfg, failingStore{TaskStore: store, err: boom}, reg)

	select {
	case <-f.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("foreman did not stop after fatal tick")
	}
	if !errors.Is(f.Err(), boom) {
		t.Fatalf("Err = %v, want %v", f.Err(), boom)
	}
	if f.Running() {
		t.Fatal("foreman still reports running")
	}
	if n := len(f.Workers()); n != 0 {
		t.Fatalf("workers left after fatal tick: %d", n)
	}
}

func TestForemanStopClosesDone(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	store := testsupport.MustOpenStore(t, cfg)
	reg := runner.NewRegistry()
	reg.Register(&recordingRunner{})

	f := startForeman(t, cfg, store, reg)
	waitFor(t, 5*time.Second, "two workers", func() bool { return len(f.Workers()) == 2 })
	f.Stop()
	select {
	case <-f.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if f.Err() != nil {
		t.Fatalf("Err after clean stop = %v", f.Err())
	}
	if err := f.Start(context.Background()); err == nil {
		t.Fatal("restarting a stopped foreman should fail")
	}
}

func TestForemanStatusSummarizesPoolAndQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	store := testsupport.MustOpenStore(t, cfg)
	rec := &recordingRunner{release: make(chan struct{})}
	defer close(rec.release)
	reg := runner.NewRegistry()
	reg.Register(rec)

	enqueue(t, store, cfg, "busy.mkv", nil)
	f := startForeman(t, cfg, store, reg)
	waitFor(t, 5*time.Second, "task claimed", func() bool { return len(rec.order()) == 1 })

	summary := f.Status(context.Background())
	if !summary.Running || summary.TargetWorkers != 2 || len(summary.Workers) != 2 {
		t.Fatalf("unexpected pool summary %+v", summary)
	}
	if summary.Queue[queue.StatusInProgress] != 1 {
		t.Fatalf("expected one in-progress task, got %v", summary.Queue)
	}
	if summary.RunnersBlocked {
		t.Fatal("valid registry reported as blocked")
	}
	if summary.Host != nil && (summary.Host.MemoryTotal == 0 || summary.Host.MemoryPercent < 0) {
		t.Fatalf("implausible host stats %+v", summary.Host)
	}
}

func TestForemanValidationRecoveryKeepsOperatorPause(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2), testsupport.WithStubbedBinaries("reel-test-encoder"))
	store := testsupport.MustOpenStore(t, cfg)
	reg, err := runner.FromRunners([]config.Runner{
		{ID: "encode", Name: "Encode", Type: "command", Command: "reel-test-encoder", Enabled: true, Passes: 1},
	})
	if err != nil {
		t.Fatalf("FromRunners: %v", err)
	}
	binary := filepath.Join(testsupport.BaseDir(cfg), "bin", "reel-test-encoder")

	f := startForeman(t, cfg, store, reg)
	paused := func() map[string]bool {
		out := make(map[string]bool)
		for _, w := range f.Workers() {
			out[w.ID] = w.Paused
		}
		return out
	}
	waitFor(t, 5*time.Second, "two idle workers", func() bool {
		ws := f.Workers()
		return len(ws) == 2 && ws[0].State == worker.StateIdle && ws[1].State == worker.StateIdle
	})
	if err := f.Pause("W1"); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	if err := os.Remove(binary); err != nil {
		t.Fatalf("remove runner binary: %v", err)
	}
	waitFor(t, 5*time.Second, "all workers paused", func() bool {
		p := paused()
		return len(p) == 2 && p["W1"] && p["W2"]
	})

	testsupport.WriteScript(t, binary, "exit 0")
	waitFor(t, 5*time.Second, "W2 resumed", func() bool { return !paused()["W2"] })
	time.Sleep(5 * cfg.Workers.TickInterval())
	if !paused()["W1"] {
		t.Fatal("operator-paused W1 was resumed when runners recovered")
	}
	if f.Status(context.Background()).RunnersBlocked {
		t.Fatal("status still reports blocked runners")
	}
}
