package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
)

// NotificationEventHandler turns playback events into chat announcements.
type NotificationEventHandler struct {
	announcer ports.Announcer
	bus       *Bus

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

// NewNotificationEventHandler creates a new NotificationEventHandler.
// announcer may be nil, in which case events are only logged.
func NewNotificationEventHandler(announcer ports.Announcer, bus *Bus) *NotificationEventHandler {
	return &NotificationEventHandler{
		announcer: announcer,
		bus:       bus,
		done:      make(chan struct{}),
	}
}

// Start begins listening for events in background goroutines.
func (h *NotificationEventHandler) Start(ctx context.Context) {
	h.wg.Add(4)

	go listen(ctx, h, h.bus.RequestAdmitted(), h.handleRequestAdmitted)
	go listen(ctx, h, h.bus.PlaybackStarted(), h.handlePlaybackStarted)
	go listen(ctx, h, h.bus.PlaybackFinished(), h.handlePlaybackFinished)
	go listen(ctx, h, h.bus.QueueCleared(), h.handleQueueCleared)

	slog.Debug("notification event handler started")
}

// Stop stops the event handler and waits for goroutines to finish.
func (h *NotificationEventHandler) Stop() {
	h.once.Do(func() { close(h.done) })
	h.wg.Wait()
	slog.Debug("notification event handler stopped")
}

func listen[T any](
	ctx context.Context,
	h *NotificationEventHandler,
	ch <-chan T,
	handle func(T),
) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			handle(event)
		}
	}
}

func (h *NotificationEventHandler) handleRequestAdmitted(event ports.RequestAdmittedEvent) {
	slog.Debug("request admitted",
		"username", event.Username,
		"item", event.Item.Label(),
		"position", event.Position,
	)
}

func (h *NotificationEventHandler) handlePlaybackStarted(event ports.PlaybackStartedEvent) {
	text := "正在播放: " + event.NowPlaying.Item.Label()
	h.announce(text)
}

func (h *NotificationEventHandler) handlePlaybackFinished(event ports.PlaybackFinishedEvent) {
	if event.TimedOut {
		slog.Warn("playback ended by watchdog",
			"item", event.Item.Label(),
			"session_id", event.SessionID,
		)
		return
	}
	slog.Debug("playback finished", "item", event.Item.Label(), "session_id", event.SessionID)
}

func (h *NotificationEventHandler) handleQueueCleared(event ports.QueueClearedEvent) {
	slog.Debug("queue cleared", "removed", event.Removed)
}

func (h *NotificationEventHandler) announce(text string) {
	if h.announcer == nil {
		slog.Info("announcement", "text", text)
		return
	}
	if err := h.announcer.Announce(text); err != nil {
		slog.Warn("failed to send announcement", "error", err)
	}
}
