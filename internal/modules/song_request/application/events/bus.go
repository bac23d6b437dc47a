package events

import (
	"log/slog"
	"sync"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
)

// DefaultEventBufferSize is the default buffer size for event channels.
const DefaultEventBufferSize = 100

// Compile-time check that Bus implements ports.EventPublisher.
var _ ports.EventPublisher = (*Bus)(nil)

// Bus provides a channel-based event bus for async event handling.
type Bus struct {
	requestAdmitted  chan ports.RequestAdmittedEvent
	playbackStarted  chan ports.PlaybackStartedEvent
	playbackFinished chan ports.PlaybackFinishedEvent
	queueCleared     chan ports.QueueClearedEvent

	closed bool
	mu     sync.RWMutex
}

// NewBus creates a new Bus with the given buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	return &Bus{
		requestAdmitted:  make(chan ports.RequestAdmittedEvent, bufferSize),
		playbackStarted:  make(chan ports.PlaybackStartedEvent, bufferSize),
		playbackFinished: make(chan ports.PlaybackFinishedEvent, bufferSize),
		queueCleared:     make(chan ports.QueueClearedEvent, bufferSize),
	}
}

// publish sends event on ch without blocking. Events are dropped when the
// buffer is full or the bus is closed.
func publish[T any](b *Bus, ch chan T, eventType string, event T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", eventType)
		return
	}

	select {
	case ch <- event:
		slog.Debug("published event", "type", eventType)
	default:
		slog.Warn("event buffer full, dropping event", "type", eventType)
	}
}

// PublishRequestAdmitted publishes a RequestAdmittedEvent.
func (b *Bus) PublishRequestAdmitted(event ports.RequestAdmittedEvent) {
	publish(b, b.requestAdmitted, "RequestAdmitted", event)
}

// PublishPlaybackStarted publishes a PlaybackStartedEvent.
func (b *Bus) PublishPlaybackStarted(event ports.PlaybackStartedEvent) {
	publish(b, b.playbackStarted, "PlaybackStarted", event)
}

// PublishPlaybackFinished publishes a PlaybackFinishedEvent.
func (b *Bus) PublishPlaybackFinished(event ports.PlaybackFinishedEvent) {
	publish(b, b.playbackFinished, "PlaybackFinished", event)
}

// PublishQueueCleared publishes a QueueClearedEvent.
func (b *Bus) PublishQueueCleared(event ports.QueueClearedEvent) {
	publish(b, b.queueCleared, "QueueCleared", event)
}

// RequestAdmitted returns the channel for RequestAdmittedEvent.
func (b *Bus) RequestAdmitted() <-chan ports.RequestAdmittedEvent {
	return b.requestAdmitted
}

// PlaybackStarted returns the channel for PlaybackStartedEvent.
func (b *Bus) PlaybackStarted() <-chan ports.PlaybackStartedEvent {
	return b.playbackStarted
}

// PlaybackFinished returns the channel for PlaybackFinishedEvent.
func (b *Bus) PlaybackFinished() <-chan ports.PlaybackFinishedEvent {
	return b.playbackFinished
}

// QueueCleared returns the channel for QueueClearedEvent.
func (b *Bus) QueueCleared() <-chan ports.QueueClearedEvent {
	return b.queueCleared
}

// Close closes all event channels.
// After calling Close, publishing will no longer send events.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.requestAdmitted)
	close(b.playbackStarted)
	close(b.playbackFinished)
	close(b.queueCleared)

	slog.Debug("event bus closed")
}
