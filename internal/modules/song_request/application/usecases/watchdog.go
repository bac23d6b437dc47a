package usecases

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
)

// WatchdogConfig controls how a timed-out player is stopped.
type WatchdogConfig struct {
	// Timeout is how long the player may run.
	Timeout time.Duration

	// QuitGrace is how long to wait after sending quit before terminating the process tree.
	QuitGrace time.Duration

	// KillGrace is passed to PlayerProcess.Terminate.
	KillGrace time.Duration
}

// Watchdog stops a player that outlives its expected duration.
// It stands down without touching the process if the process exits first.
type Watchdog struct {
	cancel context.CancelFunc
	done   chan struct{}
	fired  atomic.Bool
}

// StartWatchdog arms a watchdog for proc. send is used to deliver the quit command
// so that it is serialized with other control writes.
func StartWatchdog(
	cfg WatchdogConfig,
	proc ports.PlayerProcess,
	send func(command string) error,
) *Watchdog {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watchdog{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go w.run(ctx, cfg, proc, send)

	return w
}

func (w *Watchdog) run(
	ctx context.Context,
	cfg WatchdogConfig,
	proc ports.PlayerProcess,
	send func(command string) error,
) {
	defer close(w.done)

	timer := time.NewTimer(cfg.Timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-proc.Done():
		slog.Debug("player exited before watchdog timeout", "pid", proc.PID())
		return
	case <-timer.C:
	}

	// The process may have exited in the same instant the timer fired.
	select {
	case <-proc.Done():
		return
	default:
	}

	w.fired.Store(true)
	slog.Warn("player exceeded expected duration, stopping",
		"pid", proc.PID(),
		"timeout", cfg.Timeout,
	)

	if err := send("quit"); err != nil {
		slog.Debug("failed to send quit to timed-out player", "error", err)
	}

	grace := time.NewTimer(cfg.QuitGrace)
	defer grace.Stop()

	select {
	case <-ctx.Done():
		return
	case <-proc.Done():
		return
	case <-grace.C:
	}

	if err := proc.Terminate(cfg.KillGrace); err != nil {
		slog.Warn("failed to terminate timed-out player", "pid", proc.PID(), "error", err)
	}
}

// Stop cancels the watchdog and waits for its goroutine to finish.
// It is safe to call more than once.
func (w *Watchdog) Stop() {
	w.cancel()
	<-w.done
}

// Fired reports whether the timeout elapsed while the player was still running.
func (w *Watchdog) Fired() bool {
	return w.fired.Load()
}

// Done is closed once the watchdog goroutine has returned.
func (w *Watchdog) Done() <-chan struct{} {
	return w.done
}
