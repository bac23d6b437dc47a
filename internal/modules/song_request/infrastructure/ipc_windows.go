//go:build windows

package infrastructure

import (
	"fmt"
	"os"
	"time"
)

func ipcPath(_ string, sessionID string) string {
	return `\\.\pipe\reqbox-mpv-` + sessionID
}

func sendIPC(path, command string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		pipe, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err == nil {
			defer pipe.Close()
			if _, err := pipe.Write([]byte(command + "\n")); err != nil {
				return fmt.Errorf("failed to write command: %w", err)
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Named pipes disappear with their server.
func removeStaleIPC(string) {}
