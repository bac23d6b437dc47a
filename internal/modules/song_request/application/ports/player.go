package ports

import (
	"context"
	"errors"
	"time"
)

// ErrExecutableNotFound is returned by a PlayerLauncher when the player binary is missing.
var ErrExecutableNotFound = errors.New("player executable not found")

// LaunchSpec describes one player session.
type LaunchSpec struct {
	URL     string
	IPCPath string
	Volume  int

	// Video enables the longer buffering needed when extracting audio from a video page.
	Video bool
}

// PlayerLauncher starts external player processes.
type PlayerLauncher interface {
	// NewIPCPath returns a fresh control endpoint path for a session.
	NewIPCPath(sessionID string) string

	Launch(ctx context.Context, spec LaunchSpec) (PlayerProcess, error)
}

// PlayerProcess is a running player. Done is closed once the process has exited.
type PlayerProcess interface {
	PID() int
	Done() <-chan struct{}

	// Wait blocks until the process exits and returns its exit error.
	Wait() error

	// Send writes one command line to the control endpoint. It does not wait for a reply.
	Send(command string) error

	// Terminate stops the process tree gracefully and kills it after grace.
	// It returns once the process has exited.
	Terminate(grace time.Duration) error
}

// DurationProber estimates the playback length of a media page.
type DurationProber interface {
	Probe(ctx context.Context, url string) (time.Duration, error)
}
