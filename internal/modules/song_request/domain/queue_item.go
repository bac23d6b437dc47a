package domain

import "fmt"

// TrackID identifies a catalog track.
type TrackID string

// QueueItem is a playable request. It is one of Track, ExternalTrack or VideoRef.
// Items are immutable once enqueued.
type QueueItem interface {
	// Title is the human readable title shown in listings.
	Title() string

	// Artist is the performer, empty for videos.
	Artist() string

	// Label is the one-line description used in status lines and the request log.
	Label() string

	isQueueItem()
}

// Track is a catalog track whose audio URL is resolved right before playback.
type Track struct {
	ID          TrackID
	DisplayName string
	ArtistName  string
}

// ExternalTrack is a track found on a secondary source with its audio URL already known.
type ExternalTrack struct {
	ID          string
	DisplayName string
	ArtistName  string
	AudioURL    string
}

// VideoRef points to a video whose audio is extracted by the player.
// PartNumber is 0 when the video has a single part.
type VideoRef struct {
	VideoID    string
	PartNumber int
}

func (Track) isQueueItem()         {}
func (ExternalTrack) isQueueItem() {}
func (VideoRef) isQueueItem()      {}

func (t Track) Title() string  { return t.DisplayName }
func (t Track) Artist() string { return t.ArtistName }

// Label returns "name - artist".
func (t Track) Label() string {
	return fmt.Sprintf("%s - %s", t.DisplayName, t.ArtistName)
}

func (t ExternalTrack) Title() string  { return t.DisplayName }
func (t ExternalTrack) Artist() string { return t.ArtistName }

// Label returns "name - artist" marked as coming from the secondary source.
func (t ExternalTrack) Label() string {
	return fmt.Sprintf("%s - %s (备线源)", t.DisplayName, t.ArtistName)
}

// Title returns the video reference in its request form, e.g. BV1xx411c7mu?p=2.
func (v VideoRef) Title() string {
	if v.PartNumber > 0 {
		return fmt.Sprintf("%s?p=%d", v.VideoID, v.PartNumber)
	}
	return v.VideoID
}

func (v VideoRef) Artist() string { return "" }

// Label returns "视频 - id".
func (v VideoRef) Label() string {
	return "视频 - " + v.Title()
}

// URL returns the page address the player extracts audio from.
func (v VideoRef) URL() string {
	return "https://www.bilibili.com/video/" + v.Title()
}

// ItemID returns the identifier recorded in history for an item.
func ItemID(item QueueItem) string {
	switch it := item.(type) {
	case Track:
		return string(it.ID)
	case ExternalTrack:
		return it.ID
	case VideoRef:
		return it.Title()
	default:
		return ""
	}
}

// ItemKind returns a short name for the item variant, used in logs and the status API.
func ItemKind(item QueueItem) string {
	switch item.(type) {
	case Track:
		return "track"
	case ExternalTrack:
		return "external_track"
	case VideoRef:
		return "video"
	default:
		return "unknown"
	}
}
