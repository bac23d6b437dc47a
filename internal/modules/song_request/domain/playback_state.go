package domain

import "time"

// PlaybackState is the orchestrator state.
//
//	Idle -> Resolving -> Launching -> Playing -> Draining -> Idle
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StateResolving
	StateLaunching
	StatePlaying
	StateDraining
)

func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateLaunching:
		return "launching"
	case StatePlaying:
		return "playing"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// MinVolume and MaxVolume bound the player volume.
const (
	MinVolume     = 0
	MaxVolume     = 100
	DefaultVolume = 100
)

// ValidVolume reports whether v is within the player volume range.
func ValidVolume(v int) bool {
	return MinVolume <= v && v <= MaxVolume
}

// NowPlaying describes the item of the current session.
type NowPlaying struct {
	Item      QueueItem
	SessionID string
	StartedAt time.Time

	// Fallback is true when the item was picked from the fallback set rather than requested.
	Fallback bool
}

// RequestRecord is one admitted request as written to the request log.
type RequestRecord struct {
	Username   string
	Label      string
	ItemID     string
	Kind       string
	AdmittedAt time.Time
}

// NewRequestRecord builds the log record for an admitted item.
func NewRequestRecord(username string, item QueueItem, at time.Time) RequestRecord {
	return RequestRecord{
		Username:   username,
		Label:      requestLabel(item),
		ItemID:     ItemID(item),
		Kind:       ItemKind(item),
		AdmittedAt: at,
	}
}

// Request log labels omit the secondary source marker used in listings.
func requestLabel(item QueueItem) string {
	if ext, ok := item.(ExternalTrack); ok {
		return Track{DisplayName: ext.DisplayName, ArtistName: ext.ArtistName}.Label()
	}
	return item.Label()
}

// UserStats summarizes a user's request history.
type UserStats struct {
	Username string
	Total    int

	// Recent holds the labels of the most recent requests, oldest first.
	Recent []string
}
