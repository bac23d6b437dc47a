//go:build windows

package infrastructure

import (
	"errors"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

const createNewProcessGroup = 0x00000200

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// terminateProcessTree asks taskkill to close the tree and forces it after grace.
func terminateProcessTree(cmd *exec.Cmd, done <-chan struct{}, grace time.Duration) error {
	pid := strconv.Itoa(cmd.Process.Pid)

	_ = exec.Command("taskkill", "/PID", pid, "/T").Run()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	_ = exec.Command("taskkill", "/PID", pid, "/T", "/F").Run()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return errors.New("process did not exit after taskkill /F")
	}
}
