// Package daemonrun assembles the reel daemon process: logging, the task
// store, the runner registry, the foreman, optional Redis ingest, the HTTP API
// and the IPC socket.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reel/internal/config"
	"reel/internal/daemon"
	"reel/internal/deps"
	"reel/internal/foreman"
	"reel/internal/ingest"
	"reel/internal/ipc"
	"reel/internal/logging"
	"reel/internal/notifications"
	"reel/internal/queue"
	"reel/internal/runner"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the daemon and blocks until a signal, an IPC stop request, or a
// fatal scheduler error.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	rotated, rotateErr := rotateLog(cfg.LogPath(), time.Now())
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg, opts.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if rotateErr != nil {
		logger.Warn("unable to rotate previous log", logging.Error(rotateErr))
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "reel-*.log", Exclude: []string{rotated}},
	)
	logDependencySnapshot(logger, cfg)

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open task store", logging.Error(err))
		return err
	}

	registry, err := runner.FromRunners(cfg.EnabledRunners())
	if err != nil {
		store.Close()
		return fmt.Errorf("build runner registry: %w", err)
	}

	notifier := notifications.NewService(cfg)
	fm := foreman.New(foreman.Options{
		Store:    store,
		Registry: registry,
		Settings: cfg.Workers,
		Notifier: notifier,
		Logger:   logger,
	})

	daemonOpts := []daemon.Option{daemon.WithNotifier(notifier)}
	if cfg.Ingest.Redis.Enabled {
		daemonOpts = append(daemonOpts, daemon.WithIngest(ingest.NewConsumer(cfg.Ingest.Redis, store, logger)))
	}
	d, err := daemon.New(cfg, store, fm, registry, logger, daemonOpts...)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running instance and database access"),
			logging.String(logging.FieldImpact, "no tasks will be processed"),
		)
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	var runErr error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received")
	case <-d.ShutdownRequested():
		logger.Info("shutdown requested")
	case <-d.SchedulerDone():
		runErr = d.SchedulerErr()
		if runErr == nil {
			runErr = errors.New("scheduler stopped unexpectedly")
		}
		logging.ErrorWithContext(logger, "scheduler stopped", "scheduler_stopped", logging.Error(runErr))
	}
	logger.Info("reel daemon shutting down", logging.EventType("daemon_shutdown"))
	return runErr
}

// PIDPath returns the location of the daemon pid file.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "reel.pid")
}

// rotateLog renames a non-empty log from a previous run so each run starts a
// fresh file. It returns the rotated path, or "" when nothing moved.
func rotateLog(path string, now time.Time) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	stamp := info.ModTime()
	if stamp.IsZero() {
		stamp = now
	}
	target := filepath.Join(filepath.Dir(path), fmt.Sprintf("reel-%s.log", stamp.UTC().Format("20060102T150405.000Z")))
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	return target, nil
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	for _, status := range deps.CheckRunners(cfg.EnabledRunners()) {
		attrs := []logging.Attr{
			logging.EventType("dependency_snapshot"),
			logging.String("dependency", status.Name),
			logging.String("command", status.Command),
			logging.Bool("available", status.Available),
		}
		if status.Available {
			logger.Info("dependency snapshot", logging.Args(attrs...)...)
			continue
		}
		attrs = append(attrs,
			logging.String("detail", status.Detail),
			logging.String(logging.FieldErrorHint, "install the binary or fix the runner command"),
			logging.String(logging.FieldImpact, "workers stay paused until every runner resolves"),
		)
		logging.WarnWithContext(logger, "dependency missing", "dependency_missing", attrs...)
	}
}
