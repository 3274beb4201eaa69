package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"reel/internal/logging"
	"reel/internal/queue"
)

// Run is the worker's main loop. It returns when ctx is cancelled or the
// worker has been marked redundant and reaches a checkpoint: the idle wait,
// the handoff wait or the pause wait. A task in hand is always finished.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	defer w.setState(StateStopped)

	poll := w.pollInterval()
	w.logger.Debug("worker started", logging.EventType("worker_started"), logging.String("name", w.name))

	for {
		if ctx.Err() != nil {
			return
		}
		if w.redundant.Load() {
			w.setState(StateRedundant)
			w.logger.Info("worker exiting", logging.EventType("worker_redundant"))
			return
		}
		if w.paused.Load() {
			w.setState(StateIdle)
			if !sleepCtx(ctx, poll) {
				return
			}
			continue
		}

		w.setState(StateIdle)
		select {
		case <-ctx.Done():
			return
		case task, ok := <-w.handoff:
			if !ok {
				return
			}
			if task == nil {
				continue
			}
			var result Result
			if w.redundant.Load() {
				w.logger.Info("returning task received after retirement", logging.TaskID(task.ID), logging.EventType("task_returned"))
				result = Result{TaskID: task.ID, WorkerID: w.id, Requeue: true}
				w.Release()
			} else {
				w.accept()
				result = w.safeProcess(ctx, task)
				w.resetTask()
			}
			select {
			case w.results <- result:
			case <-ctx.Done():
				w.logger.Warn("result dropped during shutdown; task stays in progress until restart",
					logging.TaskID(task.ID),
					logging.EventType("result_dropped"),
					logging.String(logging.FieldErrorHint, "the task is reset to pending when the daemon starts"),
					logging.String(logging.FieldImpact, "task will be reprocessed"),
				)
				return
			}
		case <-time.After(poll):
		}
	}
}

// safeProcess keeps a panic outside any runner from killing the worker.
func (w *Worker) safeProcess(ctx context.Context, task *queue.Task) (result Result) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(w.logger, "worker panicked while processing task", "worker_panic",
				logging.TaskID(task.ID),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			result = Result{
				TaskID:   task.ID,
				WorkerID: w.id,
				Success:  false,
				Log:      fmt.Sprintf("\n\nWORKER FAILED!\n%v\n", r),
				Started:  started,
				Finished: time.Now(),
			}
		}
	}()
	return w.process(ctx, task)
}

// holdWhilePaused blocks while the worker is paused. It returns false if ctx
// ends first.
func (w *Worker) holdWhilePaused(ctx context.Context) bool {
	for w.paused.Load() {
		if !sleepCtx(ctx, w.pollInterval()) {
			return false
		}
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
