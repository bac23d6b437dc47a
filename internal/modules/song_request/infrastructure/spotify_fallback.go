package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// Compile-time check that SpotifyFallback implements ports.FallbackSource.
var _ ports.FallbackSource = (*SpotifyFallback)(nil)

const (
	spotifyPageLimit       = 100
	spotifyRefreshInterval = 6 * time.Hour
)

// SpotifyConfig contains Spotify client credentials and the seed playlist.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string

	// Playlist is a playlist id, URL or spotify:playlist: URI.
	Playlist string
}

type playlistEntry struct {
	name   string
	artist string
}

// SpotifyFallback picks a random entry from a Spotify playlist and looks it
// up in the catalog, so fallback items are always playable catalog tracks.
type SpotifyFallback struct {
	client     *spotify.Client
	playlistID spotify.ID
	catalog    ports.Catalog
	pick       func(n int) int
	now        func() time.Time

	mu       sync.Mutex
	entries  []playlistEntry
	loadedAt time.Time
}

// NewSpotifyFallback creates a SpotifyFallback using the client credentials flow.
func NewSpotifyFallback(ctx context.Context, config SpotifyConfig, catalog ports.Catalog) (*SpotifyFallback, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("spotify client ID and secret are required")
	}

	credentials := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	return newSpotifyFallback(spotify.New(credentials.Client(ctx)), config.Playlist, catalog)
}

func newSpotifyFallback(client *spotify.Client, playlist string, catalog ports.Catalog) (*SpotifyFallback, error) {
	playlistID, err := extractPlaylistID(playlist)
	if err != nil {
		return nil, err
	}

	return &SpotifyFallback{
		client:     client,
		playlistID: spotify.ID(playlistID),
		catalog:    catalog,
		pick:       rand.IntN,
		now:        time.Now,
	}, nil
}

// extractPlaylistID accepts a bare id, an open.spotify.com URL or a spotify:playlist: URI.
func extractPlaylistID(playlist string) (string, error) {
	playlist = strings.TrimSpace(playlist)

	switch {
	case playlist == "":
		return "", fmt.Errorf("spotify playlist is required")
	case strings.HasPrefix(playlist, "spotify:playlist:"):
		return strings.TrimPrefix(playlist, "spotify:playlist:"), nil
	case strings.Contains(playlist, "open.spotify.com/playlist/"):
		parts := strings.Split(playlist, "/playlist/")
		if len(parts) != 2 || parts[1] == "" {
			return "", fmt.Errorf("invalid playlist URL format")
		}
		return strings.Split(parts[1], "?")[0], nil
	case strings.Contains(playlist, "/"):
		return "", fmt.Errorf("unsupported playlist URL format")
	default:
		return playlist, nil
	}
}

// RandomFallback resolves a random playlist entry through the catalog.
func (f *SpotifyFallback) RandomFallback(ctx context.Context) (domain.QueueItem, error) {
	entries, err := f.playlistEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ports.ErrNoResults
	}

	entry := entries[f.pick(len(entries))]
	track, err := f.catalog.Search(ctx, entry.name+" "+entry.artist)
	if err != nil {
		return nil, fmt.Errorf("failed to find %q in catalog: %w", entry.name, err)
	}

	return track, nil
}

// playlistEntries returns the cached playlist, reloading it when stale.
func (f *SpotifyFallback) playlistEntries(ctx context.Context) ([]playlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.entries != nil && f.now().Sub(f.loadedAt) < spotifyRefreshInterval {
		return f.entries, nil
	}

	entries, err := f.loadPlaylist(ctx)
	if err != nil {
		if f.entries != nil {
			slog.Warn("failed to refresh fallback playlist, using cached entries", "error", err)
			return f.entries, nil
		}
		return nil, err
	}

	f.entries = entries
	f.loadedAt = f.now()
	slog.Info("loaded fallback playlist", "playlist_id", f.playlistID, "tracks", len(entries))

	return entries, nil
}

func (f *SpotifyFallback) loadPlaylist(ctx context.Context) ([]playlistEntry, error) {
	entries := []playlistEntry{}
	offset := 0

	for {
		page, err := f.client.GetPlaylistItems(ctx, f.playlistID,
			spotify.Limit(spotifyPageLimit), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist items at offset %d: %w", offset, err)
		}

		for _, item := range page.Items {
			// Episodes have no catalog counterpart.
			if item.Track.Track == nil {
				continue
			}

			artist := ""
			if len(item.Track.Track.Artists) > 0 {
				artist = item.Track.Track.Artists[0].Name
			}
			entries = append(entries, playlistEntry{name: item.Track.Track.Name, artist: artist})
		}

		if len(page.Items) == 0 || offset+len(page.Items) >= int(page.Total) {
			break
		}
		offset += len(page.Items)
	}

	return entries, nil
}
