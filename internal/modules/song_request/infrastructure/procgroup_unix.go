//go:build !windows

package infrastructure

import (
	"errors"
	"os/exec"
	"syscall"
	"time"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcessTree sends SIGTERM to the whole process group and SIGKILL
// after grace. done must be closed by the single waiter when the process exits.
func terminateProcessTree(cmd *exec.Cmd, done <-chan struct{}, grace time.Duration) error {
	pgid := -cmd.Process.Pid

	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return errors.New("process did not exit after SIGKILL")
	}
}
