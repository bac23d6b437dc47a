//go:build !windows

package infrastructure

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

func ipcPath(dir, sessionID string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "reqbox-mpv-"+sessionID+".sock")
}

func sendIPC(path, command string, timeout time.Duration) error {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", path, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

func removeStaleIPC(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
