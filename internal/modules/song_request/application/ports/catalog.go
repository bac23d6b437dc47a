package ports

import (
	"context"
	"errors"

	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// ErrNoResults is returned by catalog adapters when a query matches nothing.
var ErrNoResults = errors.New("no results")

// Catalog finds tracks and resolves them to playable audio.
type Catalog interface {
	// Search returns the best match for a free-text query or a numeric track id.
	Search(ctx context.Context, query string) (domain.Track, error)

	// ResolveAudioURL returns a URL the player can stream for the track.
	ResolveAudioURL(ctx context.Context, id domain.TrackID) (string, error)
}

// FallbackSource picks an item to play when nobody has requested anything.
type FallbackSource interface {
	RandomFallback(ctx context.Context) (domain.QueueItem, error)
}

// ExternalSearcher finds tracks on a secondary source that already carry an audio URL.
type ExternalSearcher interface {
	SearchExternal(ctx context.Context, query string) (domain.ExternalTrack, error)
}
