//go:build !unix

package worker

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

type signal int

const (
	sigStop signal = iota
	sigCont
)

var errSuspendUnsupported = errors.New("process suspension is not supported on this platform")

func configureProcess(*exec.Cmd) {}

func signalProcessGroup(*exec.Cmd, signal) error { return errSuspendUnsupported }

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return os.ErrProcessDone
	}
	return cmd.Process.Kill()
}

func lowerPriority(context.Context, int, int) error { return nil }
