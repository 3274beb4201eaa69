package foreman

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"reel/internal/logging"
	"reel/internal/notifications"
	"reel/internal/queue"
	"reel/internal/services"
	"reel/internal/worker"
)

// cleanupTimeout bounds store writes made while the pool shuts down.
const cleanupTimeout = 10 * time.Second

type queueSession struct {
	active    bool
	started   time.Time
	succeeded int
	failed    int
}

// safeTick runs one tick and converts a panic into a fatal error.
func (f *Foreman) safeTick(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("foreman tick panicked: %v", p)
		}
	}()
	return f.tick(services.WithRequestID(ctx, uuid.NewString()))
}

func (f *Foreman) tick(ctx context.Context) error {
	if err := f.drainResults(ctx); err != nil {
		return err
	}
	f.applySchedules(ctx)
	if err := f.reconcile(ctx); err != nil {
		return err
	}
	if !f.validate(ctx) {
		return nil
	}
	if err := f.dispatch(ctx); err != nil {
		return err
	}
	return f.checkQueueIdle(ctx)
}

func (f *Foreman) drainResults(ctx context.Context) error {
	for {
		select {
		case res := <-f.results:
			if err := f.complete(ctx, res); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (f *Foreman) complete(ctx context.Context, res worker.Result) error {
	taskCtx := services.WithWorkerID(services.WithTaskID(ctx, res.TaskID), res.WorkerID)
	logger := logging.WithContext(taskCtx, f.logger)

	if res.Requeue {
		if err := f.store.Requeue(ctx, res.TaskID); err != nil {
			return f.storeFailure(logger, "requeue", err)
		}
		logger.Info("task returned to pending", logging.EventType("task_requeued"))
		return nil
	}
	if res.CachePath != "" {
		if err := f.store.UpdateCachePath(ctx, res.TaskID, res.CachePath); err != nil {
			return f.storeFailure(logger, "update cache path", err)
		}
	}
	if err := f.store.Complete(ctx, res.TaskID, res.Success, res.Log); err != nil {
		return f.storeFailure(logger, "complete", err)
	}

	duration := res.Finished.Sub(res.Started)
	logger.Info("task completed",
		logging.EventType("task_completed"),
		logging.Bool("success", res.Success),
		logging.Duration("duration", duration),
		logging.String("cache_path", res.CachePath),
	)
	if res.Success {
		f.session.succeeded++
	} else {
		f.session.failed++
	}
	f.publish(ctx, notifications.EventTaskResult, notifications.Payload{
		"task_id":    res.TaskID,
		"worker_id":  res.WorkerID,
		"success":    res.Success,
		"cache_path": res.CachePath,
		"duration":   duration,
	})
	return nil
}

// storeFailure classifies a store error. Consistency problems are logged and
// the tick continues; anything else stops the scheduler.
func (f *Foreman) storeFailure(logger *slog.Logger, op string, err error) error {
	if errors.Is(err, queue.ErrConsistency) || errors.Is(err, queue.ErrNotFound) {
		logging.ErrorWithContext(logger, "task store rejected "+op, "task_consistency_error",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "a task changed state outside the scheduler; inspect it with reel tasks list"),
		)
		return nil
	}
	return fmt.Errorf("%s task: %w", op, err)
}

// orderedSlots returns the pool sorted by worker index.
func (f *Foreman) orderedSlots() []*slot {
	f.mu.RLock()
	out := make([]*slot, 0, len(f.slots))
	for _, s := range f.slots {
		out = append(out, s)
	}
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b *slot) int { return a.index - b.index })
	return out
}

func (f *Foreman) lookup(id string) *slot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.slots[id]
}

func (f *Foreman) reconcile(ctx context.Context) error {
	if err := f.reap(ctx); err != nil {
		return err
	}
	target := f.WorkerCount()
	slots := f.orderedSlots()

	live := 0
	for _, s := range slots {
		if !s.w.Redundant() {
			live++
		}
	}
	for ; live < target; live++ {
		f.spawn()
	}

	excess := live - target
	for i := len(slots) - 1; i >= 0 && excess > 0; i-- {
		s := slots[i]
		if s.w.Redundant() {
			continue
		}
		switch s.w.State() {
		case worker.StateIdle, worker.StateStarting:
			s.w.MarkRedundant()
			excess--
			f.logger.Info("retiring worker",
				logging.EventType("worker_retired"),
				logging.WorkerID(s.w.ID()),
				logging.Int("target_workers", target),
			)
		}
	}
	return nil
}

// reap removes exited workers and returns any task left in their slot.
func (f *Foreman) reap(ctx context.Context) error {
	for _, s := range f.orderedSlots() {
		select {
		case <-s.w.Done():
		default:
			continue
		}
		f.mu.Lock()
		delete(f.slots, s.w.ID())
		f.mu.Unlock()
		f.logger.Debug("worker removed from pool", logging.WorkerID(s.w.ID()))
		if err := f.returnHandoff(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (f *Foreman) returnHandoff(ctx context.Context, s *slot) error {
	for {
		select {
		case task := <-s.handoff:
			if task == nil {
				continue
			}
			logger := f.logger.With(logging.TaskID(task.ID), logging.WorkerID(s.w.ID()))
			if err := f.store.Requeue(ctx, task.ID); err != nil {
				return f.storeFailure(logger, "requeue", err)
			}
			logger.Info("undelivered task returned to pending", logging.EventType("task_requeued"))
		default:
			return nil
		}
	}
}

func (f *Foreman) spawn() {
	f.mu.Lock()
	index := 1
	for {
		if _, taken := f.slots[fmt.Sprintf("W%d", index)]; !taken {
			break
		}
		index++
	}
	id := fmt.Sprintf("W%d", index)
	handoff := make(chan *queue.Task, 1)
	w := worker.New(worker.Options{
		ID:       id,
		Name:     "Worker-" + id,
		Registry: f.registry,
		Handoff:  handoff,
		Results:  f.results,
		Settings: f.settings,
		Logger:   f.base,
	})
	s := &slot{w: w, handoff: handoff, index: index}
	f.slots[id] = s
	f.mu.Unlock()

	if f.pausedByValidation {
		s.hold()
	}
	f.workerWG.Add(1)
	go func() {
		defer f.workerWG.Done()
		w.Run(f.workerCtx)
	}()
	f.logger.Info("worker spawned", logging.EventType("worker_spawned"), logging.WorkerID(id))
}

// validate pauses every worker while the runner chain is unusable. On
// recovery only the workers it paused are resumed.
func (f *Foreman) validate(ctx context.Context) bool {
	err := f.registry.Validate()
	if err != nil {
		for _, s := range f.orderedSlots() {
			s.hold()
		}
		if !f.pausedByValidation {
			f.pausedByValidation = true
			logging.WarnWithContext(logging.WithContext(ctx, f.logger), "runner validation failed; pausing all workers", "runners_invalid",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix the runner configuration or install the missing tools"),
				logging.String(logging.FieldImpact, "no tasks are dispatched until the runners validate"),
			)
		}
		return false
	}
	if f.pausedByValidation {
		f.pausedByValidation = false
		resumed := 0
		for _, s := range f.orderedSlots() {
			if s.unhold() {
				resumed++
			}
		}
		f.logger.Info("runners validated; workers resumed", logging.EventType("runners_valid"), logging.Int("resumed", resumed))
	}
	return true
}

func (f *Foreman) dispatch(ctx context.Context) error {
	for _, s := range f.orderedSlots() {
		if len(s.handoff) > 0 || !s.w.Reserve() {
			continue
		}
		empty, err := f.store.IsEmpty(ctx, queue.StatusPending)
		if err != nil {
			s.w.Release()
			return fmt.Errorf("check pending tasks: %w", err)
		}
		if empty {
			s.w.Release()
			return nil
		}
		task, err := f.store.ClaimNext(ctx, queue.ClaimFilter{LibraryIDs: f.settings.Libraries}, s.w.ID())
		if err != nil {
			s.w.Release()
			return fmt.Errorf("claim next task: %w", err)
		}
		if task == nil {
			s.w.Release()
			return nil
		}
		f.beginSession(ctx)

		logger := logging.WithContext(services.WithWorkerID(services.WithTaskID(ctx, task.ID), s.w.ID()), f.logger)
		if !f.handOff(ctx, s, task) {
			s.w.Release()
			logging.WarnWithContext(logger, "handoff slot busy; returning task to pending", "handoff_stalled",
				logging.String(logging.FieldErrorHint, "the worker did not accept the task in time"),
				logging.String(logging.FieldImpact, "task will be dispatched on a later tick"),
			)
			if err := f.store.Requeue(ctx, task.ID); err != nil {
				return f.storeFailure(logger, "requeue", err)
			}
			continue
		}
		logger.Info("task dispatched",
			logging.EventType("task_dispatched"),
			logging.String("source_path", task.SourcePath),
			logging.Int64("priority", task.Priority),
		)
	}
	return nil
}

func (f *Foreman) handOff(ctx context.Context, s *slot, task *queue.Task) bool {
	wait := f.settings.HandoffWait()
	if wait <= 0 {
		wait = 100 * time.Millisecond
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s.handoff <- task:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (f *Foreman) beginSession(ctx context.Context) {
	if f.session.active {
		return
	}
	f.session = queueSession{active: true, started: f.now()}
	pending := 0
	if stats, err := f.store.Stats(ctx); err == nil {
		pending = stats[queue.StatusPending] + stats[queue.StatusInProgress]
	}
	f.publish(ctx, notifications.EventQueueStarted, notifications.Payload{"count": pending})
}

// checkQueueIdle closes the current session once nothing is pending or running.
func (f *Foreman) checkQueueIdle(ctx context.Context) error {
	if !f.session.active {
		return nil
	}
	for _, s := range f.orderedSlots() {
		if s.w.State() == worker.StateBusy || len(s.handoff) > 0 {
			return nil
		}
	}
	if len(f.results) > 0 {
		return nil
	}
	for _, status := range []queue.Status{queue.StatusPending, queue.StatusInProgress} {
		empty, err := f.store.IsEmpty(ctx, status)
		if err != nil {
			return fmt.Errorf("check %s tasks: %w", status, err)
		}
		if !empty {
			return nil
		}
	}
	session := f.session
	f.session = queueSession{}
	duration := f.now().Sub(session.started)
	f.logger.Info("queue drained",
		logging.EventType("queue_completed"),
		logging.Int("succeeded", session.succeeded),
		logging.Int("failed", session.failed),
		logging.Duration("duration", duration),
	)
	f.publish(ctx, notifications.EventQueueCompleted, notifications.Payload{
		"succeeded": session.succeeded,
		"failed":    session.failed,
		"duration":  duration,
	})
	return nil
}

func (f *Foreman) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	notifyCtx := context.WithoutCancel(ctx)
	f.notifyWG.Add(1)
	go func() {
		defer f.notifyWG.Done()
		if err := f.notifier.Publish(notifyCtx, event, payload); err != nil {
			f.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
		}
	}()
}

// shutdownWorkers stops every worker, then records results that arrived
// during shutdown and returns undelivered tasks to pending.
func (f *Foreman) shutdownWorkers() {
	slots := f.orderedSlots()
	for _, s := range slots {
		s.w.MarkRedundant()
	}
	if f.workerCancel != nil {
		f.workerCancel()
	}
	f.workerWG.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := f.drainResults(ctx); err != nil {
		f.logger.Warn("could not record results during shutdown", logging.Error(err),
			logging.EventType("shutdown_drain_failed"),
			logging.String(logging.FieldErrorHint, "in-progress tasks are reset when the daemon starts"),
			logging.String(logging.FieldImpact, "affected tasks will be reprocessed"),
		)
	}
	for _, s := range slots {
		if err := f.returnHandoff(ctx, s); err != nil {
			f.logger.Warn("could not requeue undelivered task", logging.Error(err),
				logging.EventType("shutdown_requeue_failed"),
				logging.String(logging.FieldErrorHint, "in-progress tasks are reset when the daemon starts"),
				logging.String(logging.FieldImpact, "affected tasks will be reprocessed"),
			)
		}
	}
	f.mu.Lock()
	f.slots = make(map[string]*slot)
	f.mu.Unlock()
}
