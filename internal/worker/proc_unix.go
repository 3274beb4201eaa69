//go:build unix

package worker

import (
	"context"
	"os"
	"os/exec"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

const (
	sigStop = unix.SIGSTOP
	sigCont = unix.SIGCONT
)

func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalProcessGroup delivers sig to the child's whole process group so
// shells and their children are suspended together.
func signalProcessGroup(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return os.ErrProcessDone
	}
	pid := cmd.Process.Pid
	if pgid, err := unix.Getpgid(pid); err == nil && pgid > 0 {
		return unix.Kill(-pgid, sig)
	}
	return unix.Kill(pid, sig)
}

func killProcessGroup(cmd *exec.Cmd) error {
	if err := signalProcessGroup(cmd, unix.SIGKILL); err != nil {
		if cmd != nil && cmd.Process != nil {
			return cmd.Process.Kill()
		}
		return err
	}
	return nil
}

// lowerPriority sets the child's nice value to the daemon's plus delta.
func lowerPriority(ctx context.Context, pid, delta int) error {
	if delta <= 0 {
		return nil
	}
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return err
	}
	current, err := self.NiceWithContext(ctx)
	if err != nil {
		return err
	}
	target := int(current) + delta
	if target > 19 {
		target = 19
	}
	return unix.Setpriority(unix.PRIO_PROCESS, pid, target)
}
