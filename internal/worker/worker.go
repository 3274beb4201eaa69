package worker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/queue"
	"reel/internal/runner"
)

// State is the lifecycle position of a worker slot.
type State string

const (
	StateStarting  State = "starting"
	StateIdle      State = "idle"
	StateBusy      State = "busy"
	StateRedundant State = "redundant"
	StateStopped   State = "stopped"
)

// Runner progress values reported in RunnerInfo.Status.
const (
	RunnerPending    = "pending"
	RunnerInProgress = "in_progress"
	RunnerComplete   = "complete"
)

// RunnerInfo tracks one runner of the current task.
type RunnerInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
}

// Status is a point-in-time copy of a worker's state.
type Status struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	State       State         `json:"state"`
	Paused      bool          `json:"paused"`
	Redundant   bool          `json:"redundant"`
	TaskID      int64         `json:"task_id,omitempty"`
	SourcePath  string        `json:"source_path,omitempty"`
	StartTime   *time.Time    `json:"start_time,omitempty"`
	Runner      string        `json:"runner,omitempty"`
	Pass        int           `json:"pass,omitempty"`
	Percent     float64       `json:"percent"`
	Elapsed     time.Duration `json:"elapsed"`
	PID         int           `json:"pid,omitempty"`
	RunnersInfo []RunnerInfo  `json:"runners_info,omitempty"`
	LogTail     []string      `json:"log_tail,omitempty"`
}

// Idle reports whether the worker can accept a task right now.
func (s Status) Idle() bool {
	return s.State == StateIdle && !s.Paused && !s.Redundant
}

// Result is the outcome a worker reports for one task.
type Result struct {
	TaskID    int64
	WorkerID  string
	Success   bool
	Log       string
	CachePath string
	Started   time.Time
	Finished  time.Time
	// Requeue is set when the worker gave the task back without running it.
	Requeue bool
}

// Options configures a Worker.
type Options struct {
	ID       string
	Name     string
	Registry *runner.Registry
	Handoff  <-chan *queue.Task
	Results  chan<- Result
	Settings config.Workers
	Logger   *slog.Logger
}

// Worker executes tasks handed off by the scheduler.
type Worker struct {
	id       string
	name     string
	registry *runner.Registry
	handoff  <-chan *queue.Task
	results  chan<- Result
	settings config.Workers
	logger   *slog.Logger

	paused    atomic.Bool
	redundant atomic.Bool

	mu       sync.RWMutex
	status   Status
	reserved bool
	tail     *logTail

	done chan struct{}
}

// New constructs a worker in the starting state.
func New(opts Options) *Worker {
	logger := logging.NewComponentLogger(opts.Logger, "worker").With(logging.WorkerID(opts.ID))
	tailLines := opts.Settings.LogTailLines
	if tailLines <= 0 {
		tailLines = 300
	}
	w := &Worker{
		id:       opts.ID,
		name:     opts.Name,
		registry: opts.Registry,
		handoff:  opts.Handoff,
		results:  opts.Results,
		settings: opts.Settings,
		logger:   logger,
		tail:     newLogTail(tailLines),
		done:     make(chan struct{}),
	}
	w.status = Status{ID: opts.ID, Name: opts.Name, State: StateStarting}
	return w
}

// ID returns the worker identifier.
func (w *Worker) ID() string { return w.id }

// Name returns the display name.
func (w *Worker) Name() string { return w.name }

// Pause asks the worker to stop taking tasks and suspend its subprocess. A
// busy worker also holds before starting its next runner pass.
func (w *Worker) Pause() { w.paused.Store(true) }

// Resume clears the pause flag.
func (w *Worker) Resume() { w.paused.Store(false) }

// Paused reports the pause flag.
func (w *Worker) Paused() bool { return w.paused.Load() }

// MarkRedundant asks the worker to exit at its next checkpoint. A task it has
// already received runs to completion first.
func (w *Worker) MarkRedundant() { w.redundant.Store(true) }

// Redundant reports whether the worker has been asked to exit.
func (w *Worker) Redundant() bool { return w.redundant.Load() }

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// State returns the lifecycle state without copying the full status.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status.State
}

// Idle reports whether the worker is waiting for a task and may receive one.
func (w *Worker) Idle() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status.State == StateIdle && !w.reserved && !w.paused.Load() && !w.redundant.Load()
}

// Reserve claims the worker's handoff slot for one task. It fails unless the
// worker is idle and holds no other reservation. The reservation ends when the
// worker picks the task up or the caller calls Release.
func (w *Worker) Reserve() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status.State != StateIdle || w.reserved || w.paused.Load() || w.redundant.Load() {
		return false
	}
	w.reserved = true
	return true
}

// Release drops a reservation whose task was never delivered.
func (w *Worker) Release() {
	w.mu.Lock()
	w.reserved = false
	w.mu.Unlock()
}

// accept marks a received task as in hand, leaving idle and dropping the
// reservation in one step.
func (w *Worker) accept() {
	w.mu.Lock()
	w.status.State = StateBusy
	w.reserved = false
	w.mu.Unlock()
}

func (w *Worker) pollInterval() time.Duration {
	if poll := w.settings.IdlePoll(); poll > 0 {
		return poll
	}
	return 500 * time.Millisecond
}

// Snapshot returns a copy of the current status.
func (w *Worker) Snapshot() Status {
	w.mu.RLock()
	s := w.status
	s.RunnersInfo = append([]RunnerInfo(nil), w.status.RunnersInfo...)
	if w.status.StartTime != nil {
		started := *w.status.StartTime
		s.StartTime = &started
	}
	w.mu.RUnlock()
	s.LogTail = w.tail.Lines()
	s.Paused = w.paused.Load()
	s.Redundant = w.redundant.Load()
	return s
}

func (w *Worker) update(fn func(*Status)) {
	w.mu.Lock()
	fn(&w.status)
	w.mu.Unlock()
}

func (w *Worker) setState(state State) {
	w.update(func(s *Status) { s.State = state })
}

func (w *Worker) resetTask() {
	w.update(func(s *Status) {
		s.TaskID = 0
		s.SourcePath = ""
		s.StartTime = nil
		s.Runner = ""
		s.Pass = 0
		s.Percent = 0
		s.Elapsed = 0
		s.PID = 0
		s.RunnersInfo = nil
	})
}

func (w *Worker) setRunnerInfo(id string, status string, success bool) {
	w.update(func(s *Status) {
		for i := range s.RunnersInfo {
			if s.RunnersInfo[i].ID == id {
				s.RunnersInfo[i].Status = status
				s.RunnersInfo[i].Success = success
				return
			}
		}
	})
}
