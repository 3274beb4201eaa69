package foreman

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/notifications"
	"reel/internal/queue"
	"reel/internal/runner"
	"reel/internal/services"
	"reel/internal/worker"
)

// ErrUnknownWorker is returned by commands addressed to a worker id that is
// not in the pool.
var ErrUnknownWorker = fmt.Errorf("worker %w", services.ErrNotFound)

const resultBuffer = 64

// TaskStore is the subset of the queue store the scheduler drives.
type TaskStore interface {
	IsEmpty(ctx context.Context, status queue.Status) (bool, error)
	ClaimNext(ctx context.Context, filter queue.ClaimFilter, workerID string) (*queue.Task, error)
	Complete(ctx context.Context, id int64, success bool, log string) error
	Requeue(ctx context.Context, id int64) error
	UpdateCachePath(ctx context.Context, id int64, cachePath string) error
	Stats(ctx context.Context) (map[queue.Status]int, error)
}

// Options configures a Foreman.
type Options struct {
	Store    TaskStore
	Registry *runner.Registry
	Settings config.Workers
	Notifier notifications.Service
	Logger   *slog.Logger
}

type slot struct {
	w       *worker.Worker
	handoff chan *queue.Task
	index   int

	// held is set while the worker is paused by runner validation rather
	// than by an operator or schedule.
	holdMu sync.Mutex
	held   bool
}

// hold pauses the worker for runner validation. A worker that is already
// paused stays owned by whoever paused it.
func (s *slot) hold() {
	s.holdMu.Lock()
	defer s.holdMu.Unlock()
	if s.held || s.w.Paused() {
		return
	}
	s.w.Pause()
	s.held = true
}

// unhold resumes the worker only if validation paused it.
func (s *slot) unhold() bool {
	s.holdMu.Lock()
	defer s.holdMu.Unlock()
	if !s.held {
		return false
	}
	s.held = false
	s.w.Resume()
	return true
}

// setPaused applies an operator pause or resume, which takes ownership of
// the pause from validation.
func (s *slot) setPaused(paused bool) {
	s.holdMu.Lock()
	defer s.holdMu.Unlock()
	s.held = false
	if paused {
		s.w.Pause()
	} else {
		s.w.Resume()
	}
}

// Foreman schedules tasks onto a pool of workers.
type Foreman struct {
	store    TaskStore
	registry *runner.Registry
	settings config.Workers
	notifier notifications.Service
	logger   *slog.Logger
	base     *slog.Logger
	results  chan worker.Result
	now      func() time.Time

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	done    chan struct{}
	target  int
	slots   map[string]*slot

	// The fields below are owned by the tick goroutine.
	workerCtx          context.Context
	workerCancel       context.CancelFunc
	workerWG           sync.WaitGroup
	pausedByValidation bool
	lastScheduleMinute time.Time
	session            queueSession

	notifyWG sync.WaitGroup
}

// New constructs a Foreman. Start must be called to begin ticking.
func New(opts Options) *Foreman {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	return &Foreman{
		store:    opts.Store,
		registry: opts.Registry,
		settings: opts.Settings,
		notifier: notifier,
		logger:   logging.NewComponentLogger(opts.Logger, "foreman"),
		base:     opts.Logger,
		results:  make(chan worker.Result, resultBuffer),
		now:      time.Now,
		target:   max(opts.Settings.Count, 0),
		slots:    make(map[string]*slot),
		done:     make(chan struct{}),
	}
}

// Start begins the tick loop.
func (f *Foreman) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return errors.New("foreman already running")
	}
	select {
	case <-f.done:
		f.mu.Unlock()
		return errors.New("foreman already stopped")
	default:
	}
	if f.store == nil || f.registry == nil {
		f.mu.Unlock()
		return services.Wrap(services.ErrConfiguration, "foreman", "start", "store and registry are required", nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.running = true
	f.workerCtx, f.workerCancel = context.WithCancel(context.WithoutCancel(ctx))
	f.wg.Add(1)
	f.mu.Unlock()

	go f.loop(runCtx)
	f.logger.Info("foreman started",
		logging.EventType("foreman_started"),
		logging.Int("target_workers", f.WorkerCount()),
		logging.Duration("tick", f.tickInterval()),
	)
	return nil
}

// Stop terminates every worker and waits for the tick loop to exit.
func (f *Foreman) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	cancel()
	f.wg.Wait()
	f.notifyWG.Wait()
}

// Done is closed once the tick loop has exited, either through Stop or a
// fatal tick error.
func (f *Foreman) Done() <-chan struct{} { return f.done }

// Err returns the fatal tick error, if any.
func (f *Foreman) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// Running reports whether the tick loop is active.
func (f *Foreman) Running() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.running
}

// SetWorkerCount changes the target pool size. The pool converges on the
// next ticks; busy workers are never interrupted.
func (f *Foreman) SetWorkerCount(n int) {
	if n < 0 {
		n = 0
	}
	f.mu.Lock()
	prev := f.target
	f.target = n
	f.mu.Unlock()
	if prev != n {
		f.logger.Info("worker count changed",
			logging.EventType("worker_count_changed"),
			logging.Int("from", prev),
			logging.Int("to", n),
		)
	}
}

// WorkerCount returns the target pool size.
func (f *Foreman) WorkerCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.target
}

func (f *Foreman) tickInterval() time.Duration {
	if d := f.settings.TickInterval(); d > 0 {
		return d
	}
	return time.Second
}

func (f *Foreman) loop(ctx context.Context) {
	defer f.wg.Done()
	defer close(f.done)

	ticker := time.NewTicker(f.tickInterval())
	defer ticker.Stop()

	var fatal error
	for ctx.Err() == nil {
		if err := f.safeTick(ctx); err != nil {
			if ctx.Err() == nil {
				fatal = err
			}
			break
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	if fatal != nil {
		logging.ErrorWithContext(f.logger, "scheduler tick failed; stopping all workers", "foreman_fatal",
			logging.Error(fatal),
			logging.String(logging.FieldErrorHint, "inspect the task database and restart the daemon"),
			logging.String(logging.FieldImpact, "no further tasks will be dispatched"),
		)
	}
	f.shutdownWorkers()

	f.mu.Lock()
	f.running = false
	f.cancel = nil
	if fatal != nil {
		f.lastErr = fatal
	}
	f.mu.Unlock()
	f.logger.Info("foreman stopped", logging.EventType("foreman_stopped"))
}
