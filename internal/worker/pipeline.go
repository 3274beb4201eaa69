package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reel/internal/fileutil"
	"reel/internal/logging"
	"reel/internal/queue"
	"reel/internal/runner"
	"reel/internal/services"
)

// process drives task through the runner chain. A failing stage marks the
// task failed but the remaining runners still execute.
func (w *Worker) process(ctx context.Context, task *queue.Task) Result {
	started := time.Now()
	ctx = services.WithWorkerID(services.WithTaskID(ctx, task.ID), w.id)
	logger := logging.WithContext(ctx, w.logger)

	runners := w.registry.Ordered(task.LibraryID)
	infos := make([]RunnerInfo, 0, len(runners))
	for _, r := range runners {
		infos = append(infos, RunnerInfo{ID: r.ID(), Name: r.Name(), Status: RunnerPending})
	}
	w.tail.Reset()
	w.update(func(s *Status) {
		s.TaskID = task.ID
		s.SourcePath = task.SourcePath
		s.StartTime = &started
		s.RunnersInfo = infos
	})
	logger.Info("task started",
		logging.EventType("task_started"),
		logging.String("source_path", task.SourcePath),
		logging.Int("runners", len(runners)),
	)

	var (
		tlog       = &taskLog{tail: w.tail}
		original   = task.SourcePath
		fileIn     = original
		currentOut = original
		overall    = true
		noExec     = true
		aborted    = false
	)
	cacheStem := strings.TrimSuffix(task.CachePath, filepath.Ext(task.CachePath))

	for idx, r := range runners {
		if ctx.Err() != nil {
			tlog.Append("\n\nWORKER TERMINATED!")
			overall = false
			aborted = true
			break
		}
		runnerCtx := services.WithRunner(ctx, r.ID())
		w.setRunnerInfo(r.ID(), RunnerInProgress, false)
		stageOK := true

		for pass := 1; ; pass++ {
			if w.paused.Load() {
				logging.WithContext(runnerCtx, w.logger).Debug("worker paused; holding before runner pass", logging.Int("pass", pass))
			}
			if !w.holdWhilePaused(ctx) {
				tlog.Append("\n\nWORKER TERMINATED!")
				stageOK = false
				aborted = true
				break
			}
			rc := &runner.Context{
				TaskID:           task.ID,
				LibraryID:        task.LibraryID,
				Pass:             pass,
				FileIn:           fileIn,
				FileOut:          fmt.Sprintf("%s-WORKING-%d-%d%s", cacheStem, idx+1, pass, filepath.Ext(fileIn)),
				OriginalFilePath: original,
			}
			w.update(func(s *Status) {
				s.Runner = r.ID()
				s.Pass = pass
				s.Percent = 0
				s.Elapsed = 0
			})
			tlog.Append(fmt.Sprintf("\n\nRUNNER: \n%s [Pass #%d]\n\n", r.Name(), pass))

			if err := safeRun(runnerCtx, r, rc); err != nil {
				stageOK = false
				tlog.Append("\n\nPLUGIN FAILED!", fmt.Sprintf("\nFailed to execute runner '%s'", r.Name()), "\n"+err.Error())
				logging.WarnWithContext(logging.WithContext(runnerCtx, w.logger), "runner failed; task will be marked failed", "runner_failed",
					logging.Error(err),
					logging.Int("pass", pass),
					logging.String(logging.FieldErrorHint, "check the runner configuration"),
					logging.String(logging.FieldImpact, "task marked failed, remaining runners continue"),
				)
				break
			}
			// The source path is read-only for runners.
			rc.OriginalFilePath = original

			if len(rc.ExecCommand) > 0 {
				noExec = false
				outcome := w.execute(runnerCtx, rc, tlog)
				switch {
				case outcome.killed && ctx.Err() != nil:
					tlog.Append("\n\nWORKER TERMINATED!")
					stageOK = false
					aborted = true
				case outcome.success:
					if fileExists(rc.FileOut) {
						w.discardIntermediate(rc.FileIn, original, task.CachePath)
						fileIn = rc.FileOut
					}
				default:
					if outcome.killed {
						tlog.Append("\n\nWORKER TERMINATED!")
					}
					stageOK = false
				}
			} else {
				tlog.Append("\nRunner did not request to execute a command")
				logging.WithContext(runnerCtx, w.logger).Debug("runner did not request a command", logging.Int("pass", pass))
			}

			if fileExists(rc.FileOut) {
				currentOut = rc.FileOut
			} else {
				currentOut = fileIn
			}

			if aborted || !stageOK || !rc.Repeat {
				break
			}
		}

		w.setRunnerInfo(r.ID(), RunnerComplete, stageOK)
		if !stageOK {
			overall = false
		}
		if aborted {
			break
		}
	}

	if noExec {
		tlog.Append(fmt.Sprintf("\n\nNo runner requested to run commands for this file '%s'", original))
		logging.WarnWithContext(logger, "no runner requested a command", "task_no_commands",
			logging.String(logging.FieldErrorHint, "enable a runner that applies to this library"),
			logging.String(logging.FieldImpact, "output is a copy of the source"),
		)
	}

	cachePath := task.CachePath
	if overall {
		final, err := w.finalize(logger, currentOut, original, task.CachePath)
		if err != nil {
			overall = false
			tlog.Append(fmt.Sprintf("\n\nFINAL MOVE FAILED!\n%v", err))
			logging.ErrorWithContext(logger, "final move failed", "task_move_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check free space and permissions in cache_dir"),
			)
		} else {
			cachePath = final
		}
	}

	finished := time.Now()
	logger.Info("task finished",
		logging.EventType("task_finished"),
		logging.Bool("success", overall),
		logging.Duration("duration", finished.Sub(started)),
	)
	return Result{
		TaskID:    task.ID,
		WorkerID:  w.id,
		Success:   overall,
		Log:       tlog.String(),
		CachePath: cachePath,
		Started:   started,
		Finished:  finished,
	}
}

// safeRun invokes a runner, converting a panic into a stage failure.
func safeRun(ctx context.Context, r runner.Runner, rc *runner.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("runner %s panicked: %v", r.ID(), p)
		}
	}()
	return r.Run(ctx, rc)
}

// finalize moves the last produced file into the task's cache path, keeping
// the produced extension. When no runner produced a file the source is copied.
func (w *Worker) finalize(logger *slog.Logger, currentOut, original, cachePath string) (string, error) {
	dest := strings.TrimSuffix(cachePath, filepath.Ext(cachePath)) + filepath.Ext(currentOut)
	logger.Debug("moving final cache file", logging.String("from", currentOut), logging.String("to", dest))

	if !fileExists(currentOut) {
		logging.WarnWithContext(logger, "final output missing; retrying once", "task_move_retry",
			logging.String("path", currentOut),
			logging.String(logging.FieldErrorHint, "slow or network filesystems can delay visibility"),
			logging.String(logging.FieldImpact, "final move delayed"),
		)
		time.Sleep(w.settings.MoveRetryDelay())
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	move := func() error {
		if filepath.Clean(currentOut) == filepath.Clean(original) {
			return fileutil.Copy(currentOut, dest)
		}
		return fileutil.Move(currentOut, dest)
	}
	err := move()
	if err != nil && w.settings.MoveRetryDelay() > 0 {
		time.Sleep(w.settings.MoveRetryDelay())
		err = move()
	}
	if err != nil {
		return "", err
	}
	return dest, nil
}

// discardIntermediate removes a superseded working file. The original and
// anything outside the task's cache directory are never touched.
func (w *Worker) discardIntermediate(path, original, cachePath string) {
	if path == "" || filepath.Clean(path) == filepath.Clean(original) {
		return
	}
	if filepath.Dir(path) != filepath.Dir(cachePath) {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Debug("intermediate cleanup failed", logging.String("path", path), logging.Error(err))
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
