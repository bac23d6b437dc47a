package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// StatsRecentLimit is the number of recent requests reported by Stats.
const StatsRecentLimit = 5

// SubmitInput contains the input for the Submit use case.
type SubmitInput struct {
	Username string
	Query    string
}

// SubmitOutput contains the result of the Submit use case.
type SubmitOutput struct {
	Item domain.QueueItem

	// Position is the 1-based queue position right after admission.
	Position int
}

// RequestService admits chat requests into the queue.
type RequestService struct {
	permissions *PermissionService
	queue       *domain.RequestQueue
	resolver    *ItemResolver
	recorder    ports.RequestRecorder
	publisher   ports.EventPublisher
	now         func() time.Time
}

// NewRequestService creates a new RequestService. recorder and publisher may be nil.
func NewRequestService(
	permissions *PermissionService,
	queue *domain.RequestQueue,
	resolver *ItemResolver,
	recorder ports.RequestRecorder,
	publisher ports.EventPublisher,
) *RequestService {
	return &RequestService{
		permissions: permissions,
		queue:       queue,
		resolver:    resolver,
		recorder:    recorder,
		publisher:   publisher,
		now:         time.Now,
	}
}

// Submit runs the admission pipeline: permission, resolution, enqueue, log.
// The quota unit is reserved up front and refunded if the item is not queued.
func (s *RequestService) Submit(ctx context.Context, input SubmitInput) (*SubmitOutput, error) {
	reservation, ok := s.permissions.Reserve(input.Username)
	if !ok {
		return nil, ErrPermissionDenied
	}

	item, err := s.resolver.Resolve(ctx, input.Query)
	if err != nil {
		s.permissions.Refund(reservation)
		return nil, err
	}

	if err := enqueue(s.queue, item); err != nil {
		s.permissions.Refund(reservation)
		return nil, err
	}
	position := s.queue.Len()

	at := s.now()
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, domain.NewRequestRecord(input.Username, item, at)); err != nil {
			slog.Error("failed to record request", "username", input.Username, "error", err)
		}
	}

	if s.publisher != nil {
		s.publisher.PublishRequestAdmitted(ports.RequestAdmittedEvent{
			Username: input.Username,
			Item:     item,
			Position: position,
			At:       at,
		})
	}

	slog.Info("admitted request",
		"username", input.Username,
		"item", item.Label(),
		"position", position,
	)

	return &SubmitOutput{Item: item, Position: position}, nil
}

// Stats returns a user's request count and latest requests.
func (s *RequestService) Stats(ctx context.Context, username string) (domain.UserStats, error) {
	if s.recorder == nil {
		return domain.UserStats{Username: username}, nil
	}
	return s.recorder.UserStats(ctx, username, StatsRecentLimit)
}

func enqueue(queue *domain.RequestQueue, item domain.QueueItem) error {
	switch queue.TryEnqueue(item) {
	case domain.EnqueueDuplicate:
		return &DuplicateItemError{Title: item.Title()}
	case domain.EnqueueFull:
		return ErrQueueFull
	default:
		return nil
	}
}
