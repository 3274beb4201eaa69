package worker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"reel/internal/logging"
	"reel/internal/runner"
)

var commandContext = exec.CommandContext

const (
	maxLineBytes = 1 << 20
	waitDelay    = 5 * time.Second
)

type execOutcome struct {
	success  bool
	exitCode int
	// killed is set when the process group was killed by shutdown or the watchdog.
	killed  bool
	elapsed time.Duration
}

// execute runs rc.ExecCommand, streaming combined output into tlog and the
// progress parser. The child's process group is suspended while the worker is
// paused; paused time is excluded from elapsed time and from the watchdog.
func (w *Worker) execute(ctx context.Context, rc *runner.Context, tlog *taskLog) execOutcome {
	logger := logging.WithContext(ctx, w.logger)
	command := strings.Join(rc.ExecCommand, " ")
	tlog.Append("\n\n", "COMMAND:\n", command, "\n\n", "LOG:\n")
	logger.Debug("executing command", logging.String("command", command))

	if err := os.MkdirAll(filepath.Dir(rc.FileOut), 0o755); err != nil {
		tlog.Append(fmt.Sprintf("unable to create output directory: %v\n", err))
		return execOutcome{exitCode: -1}
	}

	cmd := commandContext(ctx, rc.ExecCommand[0], rc.ExecCommand[1:]...) //nolint:gosec
	configureProcess(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		tlog.Append(fmt.Sprintf("stdout pipe: %v\n", err))
		return execOutcome{exitCode: -1}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		tlog.Append(fmt.Sprintf("start failed: %v\n", err))
		logging.WarnWithContext(logger, "subprocess failed to start", "subprocess_start_failed",
			logging.Error(err),
			logging.String("command", rc.ExecCommand[0]),
			logging.String(logging.FieldErrorHint, "confirm the runner command is installed and on PATH"),
			logging.String(logging.FieldImpact, "runner stage failed"),
		)
		return execOutcome{exitCode: -1}
	}
	pid := cmd.Process.Pid
	if err := lowerPriority(ctx, pid, w.settings.SubprocessNice); err != nil {
		logging.WarnWithContext(logger, "unable to lower subprocess priority", "subprocess_nice_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the subprocess keeps the daemon's priority"),
			logging.String(logging.FieldImpact, "subprocess competes with the host at normal priority"),
		)
	}
	w.update(func(s *Status) { s.PID = pid })

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		scanner.Split(scanLinesOrCR)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var (
		parser    = rc.ProgressParser
		sampler   = logging.NewProgressSampler(5)
		start     = time.Now()
		pausedFor time.Duration
		pausedAt  time.Time
		suspended bool
		watchdog  bool
		timeout   = w.settings.SubprocessTimeout()
		poll      = w.settings.IdlePoll()
	)
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	active := func() time.Duration {
		elapsed := time.Since(start) - pausedFor
		if suspended {
			elapsed -= time.Since(pausedAt)
		}
		return elapsed
	}

	// syncPause brings the child's run state in line with the pause flag.
	syncPause := func() {
		want := w.paused.Load()
		switch {
		case want && !suspended:
			if err := signalProcessGroup(cmd, sigStop); err != nil {
				logger.Debug("suspend failed", logging.Int("pid", pid), logging.Error(err))
				return
			}
			suspended = true
			pausedAt = time.Now()
			logger.Debug("subprocess suspended", logging.Int("pid", pid))
		case !want && suspended:
			if err := signalProcessGroup(cmd, sigCont); err != nil {
				logger.Debug("resume failed", logging.Int("pid", pid), logging.Error(err))
				return
			}
			suspended = false
			pausedFor += time.Since(pausedAt)
			logger.Debug("subprocess resumed", logging.Int("pid", pid))
		}
	}

	for open := true; open; {
		select {
		case line, ok := <-lines:
			if !ok {
				open = false
				break
			}
			tlog.Append(line, "\n")
			if parser != nil {
				if progress, ok := parser.Parse(line); ok {
					w.update(func(s *Status) {
						if progress.Percent >= 0 {
							s.Percent = progress.Percent
						}
						s.Elapsed = active()
					})
					if sampler.ShouldLog(progress.Percent, progress.Stage) {
						logger.Info("runner progress",
							logging.EventType("runner_progress"),
							logging.Float64("percent", progress.Percent),
							logging.String("stage", progress.Stage),
						)
					}
				}
			}
			syncPause()
		case <-ticker.C:
			syncPause()
			w.update(func(s *Status) { s.Elapsed = active() })
			if timeout > 0 && !watchdog && active() > timeout {
				watchdog = true
				logging.WarnWithContext(logger, "subprocess exceeded watchdog limit; killing process group", "subprocess_watchdog",
					logging.Duration("limit", timeout),
					logging.Int("pid", pid),
					logging.String(logging.FieldErrorHint, "raise workers.subprocess_timeout_seconds for long encodes"),
					logging.String(logging.FieldImpact, "runner stage failed"),
				)
				_ = killProcessGroup(cmd)
			}
		}
	}
	if suspended {
		_ = signalProcessGroup(cmd, sigCont)
		pausedFor += time.Since(pausedAt)
		suspended = false
	}

	waitErr := cmd.Wait()
	outcome := execOutcome{elapsed: active(), exitCode: 0}
	if cmd.ProcessState != nil {
		outcome.exitCode = cmd.ProcessState.ExitCode()
	}
	outcome.killed = watchdog || ctx.Err() != nil
	outcome.success = waitErr == nil && !outcome.killed
	w.update(func(s *Status) {
		s.PID = 0
		s.Elapsed = outcome.elapsed
	})

	if !outcome.success {
		var exitErr *exec.ExitError
		if waitErr != nil && !errors.As(waitErr, &exitErr) {
			tlog.Append(fmt.Sprintf("\nwait failed: %v\n", waitErr))
		}
		logger.Info("subprocess failed",
			logging.EventType("subprocess_failed"),
			logging.Int("exit_code", outcome.exitCode),
			logging.Bool("killed", outcome.killed),
			logging.Duration("elapsed", outcome.elapsed),
		)
	} else {
		logger.Debug("subprocess completed", logging.Duration("elapsed", outcome.elapsed))
	}
	return outcome
}

// scanLinesOrCR splits on \n, \r\n or a bare \r so carriage-return progress
// updates from encoders arrive as separate lines.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		if data[i] == '\r' && i+1 == len(data) && !atEOF {
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
