package ports

import (
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// RequestAdmittedEvent is published after an item enters the queue.
type RequestAdmittedEvent struct {
	Username string
	Item     domain.QueueItem
	Position int
	At       time.Time
}

// PlaybackStartedEvent is published when a player session starts.
type PlaybackStartedEvent struct {
	NowPlaying domain.NowPlaying
}

// PlaybackFinishedEvent is published when a session ends, however it ended.
type PlaybackFinishedEvent struct {
	Item       domain.QueueItem
	SessionID  string
	FinishedAt time.Time

	// TimedOut is true when the watchdog ended the session.
	TimedOut bool
}

// QueueClearedEvent is published when an admin clears the queue.
type QueueClearedEvent struct {
	Removed int
}

// EventPublisher publishes events asynchronously.
type EventPublisher interface {
	PublishRequestAdmitted(event RequestAdmittedEvent)
	PublishPlaybackStarted(event PlaybackStartedEvent)
	PublishPlaybackFinished(event PlaybackFinishedEvent)
	PublishQueueCleared(event QueueClearedEvent)
}

// Announcer sends a short status line to the chat.
type Announcer interface {
	Announce(text string) error
}
