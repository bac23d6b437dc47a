package domain

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
)

func track(id string) Track {
	return Track{ID: TrackID(id), DisplayName: "Song " + id, ArtistName: "Artist"}
}

func TestNewRequestQueue(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{name: "explicit capacity", capacity: 3, want: 3},
		{name: "zero falls back to default", capacity: 0, want: DefaultQueueCapacity},
		{name: "negative falls back to default", capacity: -1, want: DefaultQueueCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewRequestQueue(tt.capacity)
			if q.Capacity() != tt.want {
				t.Errorf("expected capacity %d, got %d", tt.want, q.Capacity())
			}
			if !q.IsEmpty() {
				t.Error("expected new queue to be empty")
			}
		})
	}
}

func TestRequestQueue_TryEnqueue(t *testing.T) {
	tests := []struct {
		name    string
		queued  []QueueItem
		item    QueueItem
		want    EnqueueResult
		wantLen int
	}{
		{
			name:    "enqueue into empty queue",
			item:    track("1"),
			want:    EnqueueOK,
			wantLen: 1,
		},
		{
			name:    "duplicate track rejected",
			queued:  []QueueItem{track("1")},
			item:    track("1"),
			want:    EnqueueDuplicate,
			wantLen: 1,
		},
		{
			name:    "duplicate reported before full",
			queued:  []QueueItem{track("1"), track("2")},
			item:    track("2"),
			want:    EnqueueDuplicate,
			wantLen: 2,
		},
		{
			name:    "full queue rejects new track",
			queued:  []QueueItem{track("1"), track("2")},
			item:    track("3"),
			want:    EnqueueFull,
			wantLen: 2,
		},
		{
			name:    "video refs are not deduplicated",
			queued:  []QueueItem{VideoRef{VideoID: "BV1xx411c7mu"}},
			item:    VideoRef{VideoID: "BV1xx411c7mu"},
			want:    EnqueueOK,
			wantLen: 2,
		},
		{
			name:    "external tracks are not deduplicated",
			queued:  []QueueItem{ExternalTrack{ID: "x", AudioURL: "http://a"}},
			item:    ExternalTrack{ID: "x", AudioURL: "http://a"},
			want:    EnqueueOK,
			wantLen: 2,
		},
		{
			name:    "track id matching an external id is not a duplicate",
			queued:  []QueueItem{ExternalTrack{ID: "1"}},
			item:    track("1"),
			want:    EnqueueOK,
			wantLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewRequestQueue(2)
			for _, it := range tt.queued {
				if got := q.TryEnqueue(it); got != EnqueueOK {
					t.Fatalf("setup enqueue failed: %v", got)
				}
			}

			got := q.TryEnqueue(tt.item)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if q.Len() != tt.wantLen {
				t.Errorf("expected length %d, got %d", tt.wantLen, q.Len())
			}
		})
	}
}

func TestRequestQueue_FIFOAndRemoveAt(t *testing.T) {
	q := NewRequestQueue(5)
	for _, id := range []string{"a", "b", "c", "d"} {
		q.TryEnqueue(track(id))
	}

	removed, ok := q.RemoveAt(1)
	if !ok {
		t.Fatal("expected RemoveAt(1) to succeed")
	}
	if removed.(Track).ID != "b" {
		t.Errorf("expected to remove b, got %v", removed)
	}

	want := []TrackID{"a", "c", "d"}
	for _, id := range want {
		item, ok := q.TryDequeue()
		if !ok {
			t.Fatalf("expected item %s, queue empty", id)
		}
		if item.(Track).ID != id {
			t.Errorf("expected %s, got %s", id, item.(Track).ID)
		}
	}

	if _, ok := q.TryDequeue(); ok {
		t.Error("expected queue to be empty")
	}
}

func TestRequestQueue_RemoveAtOutOfRange(t *testing.T) {
	q := NewRequestQueue(5)
	q.TryEnqueue(track("a"))

	for _, idx := range []int{-1, 1, 5} {
		if _, ok := q.RemoveAt(idx); ok {
			t.Errorf("expected RemoveAt(%d) to fail", idx)
		}
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestRequestQueue_SnapshotIsCopy(t *testing.T) {
	q := NewRequestQueue(5)
	q.TryEnqueue(track("a"))
	q.TryEnqueue(track("b"))

	snap := q.Snapshot()
	snap[0] = track("z")

	again := q.Snapshot()
	if again[0].(Track).ID != "a" {
		t.Errorf("snapshot mutation leaked into queue: %v", again[0])
	}
	if len(again) != 2 {
		t.Errorf("expected 2 items, got %d", len(again))
	}
}

func TestRequestQueue_Clear(t *testing.T) {
	q := NewRequestQueue(5)
	q.TryEnqueue(track("a"))
	q.TryEnqueue(VideoRef{VideoID: "av1"})

	if n := q.Clear(); n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
	if !q.IsEmpty() {
		t.Error("expected empty queue after Clear")
	}
	if got := q.TryEnqueue(track("a")); got != EnqueueOK {
		t.Errorf("expected enqueue after clear to succeed, got %v", got)
	}
}

func TestRequestQueue_DequeueWaitsForItem(t *testing.T) {
	q := NewRequestQueue(5)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan QueueItem, 1)
	go func() {
		item, err := q.Dequeue(ctx)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			close(got)
			return
		}
		got <- item
	}()

	time.Sleep(20 * time.Millisecond)
	q.TryEnqueue(track("late"))

	item := <-got
	if item == nil || item.(Track).ID != "late" {
		t.Errorf("expected late track, got %v", item)
	}
}

func TestRequestQueue_DequeueCancelled(t *testing.T) {
	q := NewRequestQueue(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestRequestQueue_ConcurrentProducersNeverExceedCapacity(t *testing.T) {
	q := NewRequestQueue(5)

	var wg sync.WaitGroup
	results := make(chan EnqueueResult, 100)
	for i := range 100 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- q.TryEnqueue(track(strconv.Itoa(i % 20)))
		}(i)
	}
	wg.Wait()
	close(results)

	ok := 0
	for r := range results {
		if r == EnqueueOK {
			ok++
		}
	}

	if q.Len() != 5 {
		t.Errorf("expected queue to be exactly full, got %d", q.Len())
	}
	if ok != 5 {
		t.Errorf("expected 5 successful enqueues, got %d", ok)
	}

	seen := make(map[TrackID]bool)
	for _, item := range q.Snapshot() {
		id := item.(Track).ID
		if seen[id] {
			t.Errorf("duplicate track %s in queue", id)
		}
		seen[id] = true
	}
}
