package domain

import (
	"sync"
	"time"
)

// DefaultHistoryCapacity is the number of finished items kept in history.
const DefaultHistoryCapacity = 50

// HistoryEntry records an item that finished playing.
type HistoryEntry struct {
	ID          string
	Title       string
	Artist      string
	Kind        string
	CompletedAt time.Time
}

// History is a bounded, append-only record of finished items. When full, the
// oldest entry is dropped.
type History struct {
	mu       sync.RWMutex
	entries  []HistoryEntry
	capacity int
}

// NewHistory creates an empty history. A non-positive capacity falls back to
// DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		entries:  make([]HistoryEntry, 0, capacity),
		capacity: capacity,
	}
}

// Record appends a finished item.
func (h *History) Record(item QueueItem, completedAt time.Time) {
	h.Append(HistoryEntry{
		ID:          ItemID(item),
		Title:       item.Title(),
		Artist:      item.Artist(),
		Kind:        ItemKind(item),
		CompletedAt: completedAt,
	})
}

// Append adds an entry, evicting the oldest entry when over capacity.
func (h *History) Append(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, entry)
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Recent returns up to n most recent entries, newest first.
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}

	result := make([]HistoryEntry, 0, n)
	for i := len(h.entries) - 1; i >= len(h.entries)-n; i-- {
		result = append(result, h.entries[i])
	}
	return result
}
