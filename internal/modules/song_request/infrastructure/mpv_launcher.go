package infrastructure

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
)

// Compile-time checks that the mpv adapter implements the player ports.
var (
	_ ports.PlayerLauncher = (*MPVLauncher)(nil)
	_ ports.PlayerProcess  = (*mpvProcess)(nil)
)

// ipcDialTimeout bounds how long a single control command may wait for the endpoint.
const ipcDialTimeout = time.Second

// MPVConfig contains player configuration.
type MPVConfig struct {
	// Path is the mpv executable, looked up in PATH when it has no separator.
	Path string

	// IPCDir is where control sockets are created. Ignored on Windows.
	IPCDir string
}

// MPVLauncher starts mpv processes with a JSON IPC endpoint.
type MPVLauncher struct {
	path   string
	ipcDir string
}

// NewMPVLauncher creates a new MPVLauncher.
func NewMPVLauncher(config MPVConfig) *MPVLauncher {
	path := config.Path
	if path == "" {
		path = "mpv"
	}
	return &MPVLauncher{
		path:   path,
		ipcDir: config.IPCDir,
	}
}

// NewIPCPath returns a per-session control endpoint.
func (l *MPVLauncher) NewIPCPath(sessionID string) string {
	return ipcPath(l.ipcDir, sessionID)
}

// Launch starts mpv for spec. The process is placed in its own process group
// so that Terminate can take down helpers such as yt-dlp.
func (l *MPVLauncher) Launch(_ context.Context, spec ports.LaunchSpec) (ports.PlayerProcess, error) {
	path, err := exec.LookPath(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ports.ErrExecutableNotFound, l.path, err)
	}

	removeStaleIPC(spec.IPCPath)

	// The process outlives the request context; it is stopped through Terminate.
	cmd := exec.Command(path, mpvArgs(spec)...) // #nosec G204
	setProcessGroup(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ports.ErrExecutableNotFound, err)
		}
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}

	proc := &mpvProcess{
		cmd:     cmd,
		ipcPath: spec.IPCPath,
		done:    make(chan struct{}),
	}

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Debug("mpv stderr", "pid", cmd.Process.Pid, "line", scanner.Text())
		}
	}()

	// Single waiter: everything else observes exit through done.
	go func() {
		<-stderrDone
		err := cmd.Wait()

		proc.mu.Lock()
		proc.waitErr = err
		proc.mu.Unlock()

		removeStaleIPC(spec.IPCPath)
		close(proc.done)
	}()

	slog.Debug("started mpv", "pid", cmd.Process.Pid, "ipc", spec.IPCPath, "video", spec.Video)
	return proc, nil
}

func mpvArgs(spec ports.LaunchSpec) []string {
	args := []string{
		"--no-video",
		"--input-ipc-server=" + spec.IPCPath,
		"--volume=" + strconv.Itoa(spec.Volume),
		"--msg-level=all=no",
	}

	if spec.Video {
		args = append(args,
			"--idle=yes",
			"--ytdl=yes",
			"--cache=yes",
			"--demuxer-max-bytes=50MiB",
			"--demuxer-max-back-bytes=25MiB",
		)
	} else {
		args = append(args, "--idle=no")
	}

	return append(args, spec.URL)
}

type mpvProcess struct {
	cmd     *exec.Cmd
	ipcPath string
	done    chan struct{}

	mu      sync.Mutex
	waitErr error
}

func (p *mpvProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *mpvProcess) Done() <-chan struct{} {
	return p.done
}

func (p *mpvProcess) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// Send writes command to the IPC endpoint. mpv's input protocol accepts plain
// command lines as well as JSON.
func (p *mpvProcess) Send(command string) error {
	select {
	case <-p.done:
		return errors.New("process has exited")
	default:
	}
	return sendIPC(p.ipcPath, command, ipcDialTimeout)
}

func (p *mpvProcess) Terminate(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	return terminateProcessTree(p.cmd, p.done, grace)
}
