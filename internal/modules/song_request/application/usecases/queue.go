package usecases

import (
	"context"
	"log/slog"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// QueueAddInput contains the input for the admin Add use case.
type QueueAddInput struct {
	Query string

	// External searches the secondary source instead of the catalog.
	External bool
}

// QueueRemoveOutput contains the result of the Remove use case.
type QueueRemoveOutput struct {
	Position int
	Item     domain.QueueItem
}

// QueueService handles admin queue operations. Admin additions skip the
// permission gate but not dedup or the capacity bound.
type QueueService struct {
	queue     *domain.RequestQueue
	resolver  *ItemResolver
	publisher ports.EventPublisher
}

// NewQueueService creates a new QueueService.
func NewQueueService(
	queue *domain.RequestQueue,
	resolver *ItemResolver,
	publisher ports.EventPublisher,
) *QueueService {
	return &QueueService{
		queue:     queue,
		resolver:  resolver,
		publisher: publisher,
	}
}

// Add resolves and enqueues an item on behalf of an admin.
func (q *QueueService) Add(ctx context.Context, input QueueAddInput) (domain.QueueItem, error) {
	// Fail fast before a possibly slow lookup.
	if q.queue.Len() >= q.queue.Capacity() {
		return nil, ErrQueueFull
	}

	var (
		item domain.QueueItem
		err  error
	)
	if input.External {
		item, err = q.resolver.ResolveExternal(ctx, input.Query)
	} else {
		item, err = q.resolver.Resolve(ctx, input.Query)
	}
	if err != nil {
		return nil, err
	}

	if err := enqueue(q.queue, item); err != nil {
		return nil, err
	}

	slog.Info("admin added item", "item", item.Label(), "external", input.External)
	return item, nil
}

// List returns the queued items in order.
func (q *QueueService) List() []domain.QueueItem {
	return q.queue.Snapshot()
}

// Capacity returns the queue bound.
func (q *QueueService) Capacity() int {
	return q.queue.Capacity()
}

// Remove deletes the item at a 1-based position.
func (q *QueueService) Remove(position int) (*QueueRemoveOutput, error) {
	if position < 1 || position > q.queue.Capacity() {
		return nil, ErrInvalidPosition
	}

	item, ok := q.queue.RemoveAt(position - 1)
	if !ok {
		return nil, ErrInvalidPosition
	}

	slog.Info("removed queued item", "position", position, "item", item.Label())
	return &QueueRemoveOutput{Position: position, Item: item}, nil
}

// Clear drops every queued item and returns how many were removed.
func (q *QueueService) Clear() int {
	n := q.queue.Clear()
	if q.publisher != nil {
		q.publisher.PublishQueueCleared(ports.QueueClearedEvent{Removed: n})
	}
	slog.Info("cleared queue", "removed", n)
	return n
}
