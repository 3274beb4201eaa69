package daemon_test

import (
	"context"
	"testing"

	"reel/internal/config"
	"reel/internal/daemon"
	"reel/internal/foreman"
	"reel/internal/queue"
	"reel/internal/runner"
	"reel/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	reg := runner.NewRegistry()
	fm := foreman.New(foreman.Options{Store: store, Registry: reg, Settings: cfg.Workers})
	d, err := daemon.New(cfg, store, fm, reg, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	d, _ := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.StartedAt == "" {
		t.Fatalf("expected daemon to report running, got %+v", status)
	}
	if status.DatabasePath != cfg.DatabasePath() || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected paths in status: %+v", status)
	}
	if d.APIAddr() == "" {
		t.Fatal("expected api server to be listening")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if d.APIAddr() != "" {
		t.Fatal("expected api server to be closed")
	}
}

func TestDaemonLockRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	first, _ := newDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second, _ := newDaemon(t, cfg)
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention to reject second daemon")
	}
}

func TestDaemonStartRecoversInterruptedTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(0))
	cfg.Paths.APIBind = ""
	d, store := newDaemon(t, cfg)
	testsupport.EnqueueSource(t, store, cfg, "a.mkv", nil)
	if _, err := store.ClaimNext(context.Background(), queue.ClaimFilter{}, "W1"); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stats := d.Status(context.Background()).Scheduler.QueueStats
	if stats["pending"] != 1 || stats["in_progress"] != 0 {
		t.Fatalf("expected interrupted task back in pending, got %v", stats)
	}
}

func TestDaemonShutdownRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)
	d.RequestShutdown()
	d.RequestShutdown()
	select {
	case <-d.ShutdownRequested():
	default:
		t.Fatal("expected shutdown channel to be closed")
	}
}
