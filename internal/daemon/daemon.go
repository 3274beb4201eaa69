package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reel/internal/api"
	"reel/internal/config"
	"reel/internal/deps"
	"reel/internal/foreman"
	"reel/internal/ingest"
	"reel/internal/logging"
	"reel/internal/notifications"
	"reel/internal/queue"
	"reel/internal/runner"
	"reel/internal/services"
)

// Option customizes a Daemon.
type Option func(*Daemon)

// WithIngest attaches a Redis stream consumer that runs for the daemon's
// lifetime.
func WithIngest(consumer *ingest.Consumer) Option {
	return func(d *Daemon) { d.consumer = consumer }
}

// WithNotifier sets the service used for test notifications.
func WithNotifier(notifier notifications.Service) Option {
	return func(d *Daemon) { d.notifier = notifier }
}

// Daemon owns the process lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	foreman  *foreman.Foreman
	registry *runner.Registry
	consumer *ingest.Consumer
	notifier notifications.Service
	queueSvc *api.QueueService

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	ingestWG  sync.WaitGroup
	api       *apiServer
	startedAt time.Time

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, fm *foreman.Foreman, registry *runner.Registry, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || fm == nil || registry == nil {
		return nil, errors.New("daemon requires config, store, foreman, and registry")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		foreman:  fm,
		registry: registry,
		queueSvc: api.NewQueueService(store),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the instance lock, recovers interrupted tasks and launches
// the foreman, ingest consumer and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reel daemon instance is already running")
	}

	reset, err := d.store.ResetInProgress(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover in-progress tasks: %w", err)
	}
	if reset > 0 {
		d.logger.Info("returned interrupted tasks to pending",
			logging.EventType("tasks_recovered"),
			logging.Int64("count", reset),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.foreman.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start foreman: %w", err)
	}

	if d.consumer != nil {
		d.ingestWG.Add(1)
		go func() {
			defer d.ingestWG.Done()
			if err := d.consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				logging.ErrorWithContext(d.logger, "ingest consumer stopped", "ingest_stopped",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the redis address and stream configuration"),
				)
			}
		}()
	}

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil && srv != nil {
		err = srv.start(runCtx)
	}
	if err != nil {
		cancel()
		d.ingestWG.Wait()
		d.foreman.Stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.api = srv
	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("reel daemon started",
		logging.EventType("daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
	)
	return nil
}

// Stop terminates workers, stops background services and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.foreman.Stop()
	d.ingestWG.Wait()
	d.api.stop()
	d.api = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reel daemon stopped", logging.EventType("daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.consumer != nil {
		_ = d.consumer.Close()
	}
	return d.store.Close()
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool { return d.running.Load() }

// APIAddr returns the bound HTTP address, or "" when the API is disabled.
func (d *Daemon) APIAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.addr()
}

// LogPath returns the daemon log file location.
func (d *Daemon) LogPath() string { return d.cfg.LogPath() }

// RequestShutdown asks the process hosting the daemon to exit. It is safe to
// call more than once.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}

// ShutdownRequested is closed once RequestShutdown has been called.
func (d *Daemon) ShutdownRequested() <-chan struct{} { return d.shutdown }

// SchedulerDone is closed when the foreman's tick loop exits.
func (d *Daemon) SchedulerDone() <-chan struct{} { return d.foreman.Done() }

// SchedulerErr reports why the foreman stopped, if it failed.
func (d *Daemon) SchedulerErr() error { return d.foreman.Err() }

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Scheduler:    api.FromSummary(d.foreman.Status(ctx)),
		Runners:      api.FromRunnerHealth(d.registry.Health(ctx)),
		Dependencies: api.FromDependencies(deps.CheckRunners(d.cfg.EnabledRunners())),
	}
	if status.Running {
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
	}
	return status
}

// AddTask enqueues a local file.
func (d *Daemon) AddTask(ctx context.Context, req api.AddTaskRequest) (*api.Task, error) {
	source := strings.TrimSpace(req.SourcePath)
	if source == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add task", "source path is required", nil)
	}
	if !filepath.IsAbs(source) {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add task", fmt.Sprintf("source path %q must be absolute", source), nil)
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add task", "stat source file", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add task", fmt.Sprintf("source path %q is a directory", source), nil)
	}

	id, err := d.store.Enqueue(ctx, queue.NewTask{
		SourcePath: source,
		Priority:   req.Priority,
		Kind:       queue.KindLocal,
		LibraryID:  req.LibraryID,
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(services.WithTaskID(ctx, id), d.logger).Info("task queued",
		logging.EventType("task_queued"),
		logging.String("source_path", source),
	)
	return d.queueSvc.Describe(ctx, id)
}

// ListTasks returns tasks filtered by status, highest dispatch priority first.
func (d *Daemon) ListTasks(ctx context.Context, statuses []queue.Status, limit int) ([]api.Task, error) {
	return d.queueSvc.List(ctx, statuses, limit)
}

// GetTask returns a single task including its log, or nil when missing.
func (d *Daemon) GetTask(ctx context.Context, id int64) (*api.Task, error) {
	return d.queueSvc.Describe(ctx, id)
}

// ReorderTasks moves pending tasks to the top or bottom of the queue.
func (d *Daemon) ReorderTasks(ctx context.Context, req api.ReorderRequest) (int64, error) {
	position := queue.Position(strings.ToLower(strings.TrimSpace(req.Position)))
	return d.store.Reorder(ctx, req.IDs, position)
}

// RemoveTask deletes a processed task.
func (d *Daemon) RemoveTask(ctx context.Context, id int64) error {
	return d.store.Remove(ctx, id)
}

// DatabaseHealth reports diagnostics for the task database.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// QueueHealth returns aggregate task counts.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// TestNotification publishes a test event through the configured webhook.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.WebhookURL) == "" || d.notifier == nil {
		return false, "webhook url not configured", nil
	}
	err := d.notifier.Publish(ctx, notifications.EventTest, notifications.Payload{
		"message": "reel test notification",
	})
	if err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// PauseWorker pauses one worker, or every worker when id is empty.
func (d *Daemon) PauseWorker(id string) error {
	if id == "" {
		d.foreman.PauseAll()
		return nil
	}
	return d.foreman.Pause(id)
}

// ResumeWorker resumes one worker, or every worker when id is empty.
func (d *Daemon) ResumeWorker(id string) error {
	if id == "" {
		d.foreman.ResumeAll()
		return nil
	}
	return d.foreman.Resume(id)
}

// TerminateWorker retires one worker, or every worker when id is empty. The
// foreman spawns replacements up to the target count.
func (d *Daemon) TerminateWorker(id string) error {
	if id == "" {
		d.foreman.TerminateAll()
		return nil
	}
	return d.foreman.Terminate(id)
}

// SetWorkerCount changes the target pool size.
func (d *Daemon) SetWorkerCount(n int) error {
	if n < 0 {
		return services.Wrap(services.ErrValidation, "daemon", "set worker count", "worker count cannot be negative", nil)
	}
	d.foreman.SetWorkerCount(n)
	d.logger.Info("worker count changed", logging.EventType("worker_count_changed"), logging.Int("count", n))
	return nil
}
