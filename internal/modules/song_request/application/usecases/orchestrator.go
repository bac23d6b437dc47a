package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// MaxTimeoutBuffer is the largest watchdog buffer an admin can set.
const MaxTimeoutBuffer = 300 * time.Second

// OrchestratorConfig holds the timing knobs of the playback loop.
type OrchestratorConfig struct {
	// FallbackEnabled plays from the fallback source when the queue is empty.
	FallbackEnabled bool

	// TimeoutBuffer is added to the probed duration of a video before the watchdog fires.
	TimeoutBuffer time.Duration

	// ProbeFallback is used as the video duration when probing fails.
	ProbeFallback time.Duration

	QuitGrace      time.Duration
	TerminateGrace time.Duration

	MissingExecutableBackoff time.Duration
	ErrorBackoff             time.Duration
	IdleBackoff              time.Duration
	FallbackRetryBackoff     time.Duration
	BetweenItemsDelay        time.Duration
}

// DefaultOrchestratorConfig returns the production timings.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		TimeoutBuffer:            3 * time.Second,
		ProbeFallback:            60 * time.Second,
		QuitGrace:                500 * time.Millisecond,
		TerminateGrace:           3 * time.Second,
		MissingExecutableBackoff: 10 * time.Second,
		ErrorBackoff:             5 * time.Second,
		IdleBackoff:              5 * time.Second,
		FallbackRetryBackoff:     10 * time.Second,
		BetweenItemsDelay:        1 * time.Second,
	}
}

// PlaybackStatus is a point-in-time view of the orchestrator.
type PlaybackStatus struct {
	State         domain.PlaybackState
	NowPlaying    *domain.NowPlaying
	Volume        int
	TimeoutBuffer time.Duration
	QueueLength   int
}

// Orchestrator is the single consumer of the request queue. It owns the player
// process for the lifetime of each session.
type Orchestrator struct {
	queue     *domain.RequestQueue
	catalog   ports.Catalog
	fallback  ports.FallbackSource
	launcher  ports.PlayerLauncher
	prober    ports.DurationProber
	history   *domain.History
	publisher ports.EventPublisher
	cfg       OrchestratorConfig
	now       func() time.Time

	mu            sync.Mutex
	state         domain.PlaybackState
	nowPlaying    *domain.NowPlaying
	process       ports.PlayerProcess
	watchdog      *Watchdog
	volume        int
	timeoutBuffer time.Duration

	// ipcMu serializes writes to the control endpoint.
	ipcMu sync.Mutex
}

// NewOrchestrator creates a new Orchestrator. fallback, prober and publisher may be nil.
func NewOrchestrator(
	queue *domain.RequestQueue,
	catalog ports.Catalog,
	fallback ports.FallbackSource,
	launcher ports.PlayerLauncher,
	prober ports.DurationProber,
	history *domain.History,
	publisher ports.EventPublisher,
	cfg OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		queue:         queue,
		catalog:       catalog,
		fallback:      fallback,
		launcher:      launcher,
		prober:        prober,
		history:       history,
		publisher:     publisher,
		cfg:           cfg,
		now:           time.Now,
		state:         domain.StateIdle,
		volume:        domain.DefaultVolume,
		timeoutBuffer: cfg.TimeoutBuffer,
	}
}

// Run drives the playback loop until ctx is cancelled. Failures in one
// iteration never end the loop.
func (o *Orchestrator) Run(ctx context.Context) {
	slog.Info("started playback loop")
	defer slog.Info("stopped playback loop")

	for {
		if ctx.Err() != nil {
			o.cleanup()
			return
		}

		delay := o.step(ctx)
		if err := sleepContext(ctx, delay); err != nil {
			o.cleanup()
			return
		}
	}
}

// step runs one Idle to Idle iteration and returns how long to wait before the next.
func (o *Orchestrator) step(ctx context.Context) (delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered from panic in playback loop", "panic", r)
			o.cleanup()
			delay = o.cfg.ErrorBackoff
		}
	}()

	item, fallback, wait := o.next(ctx)
	if item == nil {
		return wait
	}

	err := o.play(ctx, item, fallback)
	switch {
	case err == nil:
		return o.cfg.BetweenItemsDelay
	case ctx.Err() != nil:
		return 0
	case errors.Is(err, ports.ErrExecutableNotFound):
		slog.Error("player executable not found", "error", err)
		o.cleanup()
		return o.cfg.MissingExecutableBackoff
	case errors.Is(err, ErrResolutionFailed):
		slog.Warn("skipping unplayable item", "item", item.Label(), "error", err)
		o.setState(domain.StateIdle)
		return o.cfg.BetweenItemsDelay
	default:
		slog.Error("playback failed", "item", item.Label(), "error", err)
		o.cleanup()
		return o.cfg.ErrorBackoff
	}
}

// next picks the item to play. When it returns nil, the caller waits for the returned delay.
func (o *Orchestrator) next(ctx context.Context) (domain.QueueItem, bool, time.Duration) {
	if item, ok := o.queue.TryDequeue(); ok {
		return item, false, 0
	}

	if o.cfg.FallbackEnabled && o.fallback != nil {
		item, err := o.fallback.RandomFallback(ctx)
		if err != nil {
			slog.Warn("failed to pick fallback item", "error", err)
			return nil, false, o.cfg.FallbackRetryBackoff
		}
		return item, true, 0
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.IdleBackoff)
	defer cancel()

	item, err := o.queue.Dequeue(waitCtx)
	if err != nil {
		return nil, false, 0
	}
	return item, false, 0
}

func (o *Orchestrator) play(ctx context.Context, item domain.QueueItem, fallback bool) error {
	o.setState(domain.StateResolving)

	var (
		url     string
		video   bool
		probeCh <-chan time.Duration
	)
	probeCtx, cancelProbe := context.WithCancel(ctx)
	defer cancelProbe()

	switch it := item.(type) {
	case domain.Track:
		resolved, err := o.catalog.ResolveAudioURL(ctx, it.ID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrResolutionFailed, err)
		}
		url = resolved
	case domain.ExternalTrack:
		url = it.AudioURL
	case domain.VideoRef:
		url = it.URL()
		video = true
		probeCh = o.probe(probeCtx, url)
	default:
		return fmt.Errorf("%w: unsupported item %T", ErrResolutionFailed, item)
	}
	if url == "" {
		return fmt.Errorf("%w: empty media url", ErrResolutionFailed)
	}

	o.setState(domain.StateLaunching)
	o.stopWatchdog()

	sessionID := uuid.NewString()
	proc, err := o.launcher.Launch(ctx, ports.LaunchSpec{
		URL:     url,
		IPCPath: o.launcher.NewIPCPath(sessionID),
		Volume:  o.Volume(),
		Video:   video,
	})
	if err != nil {
		if errors.Is(err, ports.ErrExecutableNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrProcessLaunchFailed, err)
	}

	nowPlaying := domain.NowPlaying{
		Item:      item,
		SessionID: sessionID,
		StartedAt: o.now(),
		Fallback:  fallback,
	}

	o.mu.Lock()
	o.process = proc
	o.nowPlaying = &nowPlaying
	o.state = domain.StatePlaying
	o.mu.Unlock()

	slog.Info("started playback",
		"item", item.Label(),
		"session_id", sessionID,
		"pid", proc.PID(),
		"fallback", fallback,
	)
	if o.publisher != nil {
		o.publisher.PublishPlaybackStarted(ports.PlaybackStartedEvent{NowPlaying: nowPlaying})
	}

	var watchdog *Watchdog
	if probeCh != nil {
		var (
			duration time.Duration
			armed    = true
		)
		select {
		case duration = <-probeCh:
		case <-proc.Done():
			armed = false
			cancelProbe()
			slog.Debug("player exited before probe finished", "session_id", sessionID)
		case <-ctx.Done():
			armed = false
		}
		if armed {
			timeout := duration + o.TimeoutBuffer()
			watchdog = StartWatchdog(WatchdogConfig{
				Timeout:   timeout,
				QuitGrace: o.cfg.QuitGrace,
				KillGrace: o.cfg.TerminateGrace,
			}, proc, func(command string) error {
				return o.sendTo(proc, command)
			})

			o.mu.Lock()
			o.watchdog = watchdog
			o.mu.Unlock()

			slog.Debug("armed watchdog", "session_id", sessionID, "timeout", timeout)
		}
	}

	waitErr := o.waitForExit(ctx, proc)

	timedOut := watchdog != nil && watchdog.Fired()
	o.drain(item, sessionID, timedOut)

	if waitErr != nil && !timedOut && ctx.Err() == nil {
		slog.Warn("player exited with error",
			"session_id", sessionID,
			"error", fmt.Errorf("%w: %w", ErrProcessCrashed, waitErr),
		)
	}

	return nil
}

func (o *Orchestrator) probe(ctx context.Context, url string) <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	if o.prober == nil {
		ch <- o.cfg.ProbeFallback
		return ch
	}

	go func() {
		duration, err := o.prober.Probe(ctx, url)
		if err != nil || duration <= 0 {
			slog.Warn("failed to probe duration, using fallback",
				"url", url,
				"fallback", o.cfg.ProbeFallback,
				"error", err,
			)
			duration = o.cfg.ProbeFallback
		}
		ch <- duration
	}()

	return ch
}

func (o *Orchestrator) waitForExit(ctx context.Context, proc ports.PlayerProcess) error {
	select {
	case <-proc.Done():
		return proc.Wait()
	case <-ctx.Done():
		if err := proc.Terminate(o.cfg.TerminateGrace); err != nil {
			slog.Warn("failed to terminate player on shutdown", "pid", proc.PID(), "error", err)
		}
		return ctx.Err()
	}
}

func (o *Orchestrator) drain(item domain.QueueItem, sessionID string, timedOut bool) {
	o.setState(domain.StateDraining)
	o.stopWatchdog()

	finishedAt := o.now()
	o.history.Record(item, finishedAt)

	o.mu.Lock()
	proc := o.process
	o.process = nil
	o.nowPlaying = nil
	o.mu.Unlock()

	if proc != nil {
		if err := proc.Terminate(o.cfg.TerminateGrace); err != nil {
			slog.Warn("failed to clean up player", "pid", proc.PID(), "error", err)
		}
	}

	if o.publisher != nil {
		o.publisher.PublishPlaybackFinished(ports.PlaybackFinishedEvent{
			Item:       item,
			SessionID:  sessionID,
			FinishedAt: finishedAt,
			TimedOut:   timedOut,
		})
	}

	slog.Info("finished playback", "item", item.Label(), "session_id", sessionID, "timed_out", timedOut)
	o.setState(domain.StateIdle)
}

// cleanup tears down whatever is left of the current session.
func (o *Orchestrator) cleanup() {
	o.stopWatchdog()

	o.mu.Lock()
	proc := o.process
	o.process = nil
	o.nowPlaying = nil
	o.state = domain.StateIdle
	o.mu.Unlock()

	if proc != nil {
		if err := proc.Terminate(o.cfg.TerminateGrace); err != nil {
			slog.Warn("failed to terminate player during cleanup", "pid", proc.PID(), "error", err)
		}
	}
}

func (o *Orchestrator) stopWatchdog() {
	o.mu.Lock()
	watchdog := o.watchdog
	o.watchdog = nil
	o.mu.Unlock()

	if watchdog != nil {
		watchdog.Stop()
	}
}

func (o *Orchestrator) setState(state domain.PlaybackState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = state
}

// Pause pauses the current session.
func (o *Orchestrator) Pause() error {
	return o.send("set pause yes")
}

// Resume resumes the current session.
func (o *Orchestrator) Resume() error {
	return o.send("set pause no")
}

// Skip asks the current session to quit. The loop moves on when the player exits.
func (o *Orchestrator) Skip() error {
	return o.send("quit")
}

// SetVolume stores the volume for this and later sessions. With no session
// running the value is only stored.
func (o *Orchestrator) SetVolume(volume int) error {
	if !domain.ValidVolume(volume) {
		return ErrInvalidVolume
	}

	o.mu.Lock()
	o.volume = volume
	proc := o.process
	o.mu.Unlock()

	if proc == nil {
		return nil
	}
	return o.sendTo(proc, fmt.Sprintf("set volume %d", volume))
}

// Volume returns the stored volume.
func (o *Orchestrator) Volume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// TimeoutBuffer returns the slack added to probed video durations.
func (o *Orchestrator) TimeoutBuffer() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.timeoutBuffer
}

// SetTimeoutBuffer changes the slack for watchdogs armed from now on.
func (o *Orchestrator) SetTimeoutBuffer(buffer time.Duration) error {
	if buffer < 0 || buffer > MaxTimeoutBuffer {
		return ErrInvalidBuffer
	}

	o.mu.Lock()
	o.timeoutBuffer = buffer
	o.mu.Unlock()

	slog.Info("changed timeout buffer", "buffer", buffer)
	return nil
}

// NowPlaying returns the current session, or nil.
func (o *Orchestrator) NowPlaying() *domain.NowPlaying {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.nowPlaying == nil {
		return nil
	}
	np := *o.nowPlaying
	return &np
}

// State returns the current loop state.
func (o *Orchestrator) State() domain.PlaybackState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status returns a snapshot for status reporting.
func (o *Orchestrator) Status() PlaybackStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := PlaybackStatus{
		State:         o.state,
		Volume:        o.volume,
		TimeoutBuffer: o.timeoutBuffer,
		QueueLength:   o.queue.Len(),
	}
	if o.nowPlaying != nil {
		np := *o.nowPlaying
		status.NowPlaying = &np
	}
	return status
}

// History returns up to n of the latest finished items, newest first.
func (o *Orchestrator) History(n int) []domain.HistoryEntry {
	return o.history.Recent(n)
}

func (o *Orchestrator) send(command string) error {
	o.mu.Lock()
	proc := o.process
	o.mu.Unlock()

	if proc == nil {
		return ErrIPCUnavailable
	}
	return o.sendTo(proc, command)
}

func (o *Orchestrator) sendTo(proc ports.PlayerProcess, command string) error {
	select {
	case <-proc.Done():
		return ErrIPCUnavailable
	default:
	}

	o.ipcMu.Lock()
	defer o.ipcMu.Unlock()

	if err := proc.Send(command); err != nil {
		return fmt.Errorf("%w: %w", ErrIPCUnavailable, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
