package domain

import (
	"context"
	"sync"
)

// DefaultQueueCapacity is the queue bound used when none is configured.
const DefaultQueueCapacity = 5

// EnqueueResult is the outcome of RequestQueue.TryEnqueue.
type EnqueueResult int

const (
	EnqueueOK EnqueueResult = iota
	EnqueueFull
	EnqueueDuplicate
)

func (r EnqueueResult) String() string {
	switch r {
	case EnqueueOK:
		return "ok"
	case EnqueueFull:
		return "full"
	case EnqueueDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// RequestQueue is a bounded FIFO of pending requests.
// All operations run under one mutex so inspection, dedup and positional removal
// never observe a partially modified queue. Len never exceeds Capacity.
type RequestQueue struct {
	mu       sync.Mutex
	items    []QueueItem
	capacity int

	// notify holds at most one wake-up token for the consumer blocked in Dequeue.
	notify chan struct{}
}

// NewRequestQueue creates an empty queue. A non-positive capacity falls back to
// DefaultQueueCapacity.
func NewRequestQueue(capacity int) *RequestQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	return &RequestQueue{
		items:    make([]QueueItem, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Capacity returns the queue bound.
func (q *RequestQueue) Capacity() int {
	return q.capacity
}

// Len returns the number of queued items.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty returns true if nothing is queued.
func (q *RequestQueue) IsEmpty() bool {
	return q.Len() == 0
}

// TryEnqueue appends item unless it duplicates a queued Track or the queue is full.
// The duplicate check runs before the capacity check. It never blocks.
func (q *RequestQueue) TryEnqueue(item QueueItem) EnqueueResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if track, ok := item.(Track); ok && q.containsTrackLocked(track.ID) {
		return EnqueueDuplicate
	}
	if len(q.items) >= q.capacity {
		return EnqueueFull
	}

	q.items = append(q.items, item)

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return EnqueueOK
}

// Only Track participates in dedup.
func (q *RequestQueue) containsTrackLocked(id TrackID) bool {
	for _, queued := range q.items {
		if t, ok := queued.(Track); ok && t.ID == id {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the queued items in order.
func (q *RequestQueue) Snapshot() []QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]QueueItem, len(q.items))
	copy(result, q.items)
	return result
}

// RemoveAt removes the item at the zero-based index, preserving the order of the rest.
// It returns false if the index is out of range.
func (q *RequestQueue) RemoveAt(index int) (QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.items) {
		return nil, false
	}

	removed := q.items[index]
	q.items = append(q.items[:index], q.items[index+1:]...)
	return removed, true
}

// TryDequeue pops the head without blocking.
func (q *RequestQueue) TryDequeue() (QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return head, true
}

// Dequeue pops the head, waiting until an item arrives or ctx is done.
// It is meant for the single playback consumer.
func (q *RequestQueue) Dequeue(ctx context.Context) (QueueItem, error) {
	for {
		if item, ok := q.TryDequeue(); ok {
			return item, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Clear drops every queued item and returns how many were removed.
func (q *RequestQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = make([]QueueItem, 0, q.capacity)
	return n
}
