package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// Compile-time check that LavalinkCatalog implements ports.Catalog.
var _ ports.Catalog = (*LavalinkCatalog)(nil)

// defaultSearchPrefix is used for free-text queries.
const defaultSearchPrefix = "ytsearch:"

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string

	// UserID is the snowflake the client identifies itself with.
	UserID string
}

// LavalinkCatalog searches tracks through a Lavalink node. Lavalink is used
// for lookup only: the track URI is handed to the player, which streams it itself.
type LavalinkCatalog struct {
	link disgolink.Client
	load func(ctx context.Context, query string) (*lavalink.LoadResult, error)
}

// NewLavalinkCatalog connects to the Lavalink node.
func NewLavalinkCatalog(ctx context.Context, config LavalinkConfig) (*LavalinkCatalog, error) {
	userID, err := snowflake.Parse(config.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Lavalink user ID: %w", err)
	}

	link := disgolink.New(userID)

	node, err := link.AddNode(ctx, disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	c := &LavalinkCatalog{link: link}
	c.load = c.loadFromBestNode
	return c, nil
}

func (c *LavalinkCatalog) loadFromBestNode(ctx context.Context, query string) (*lavalink.LoadResult, error) {
	node := c.link.BestNode()
	if node == nil {
		return nil, errors.New("no available Lavalink node")
	}
	return node.LoadTracks(ctx, query)
}

// Search loads the query and returns the first track. URLs are loaded as is.
func (c *LavalinkCatalog) Search(ctx context.Context, query string) (domain.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Track{}, ports.ErrNoResults
	}
	if !strings.HasPrefix(query, "http://") && !strings.HasPrefix(query, "https://") {
		query = defaultSearchPrefix + query
	}

	result, err := c.load(ctx, query)
	if err != nil {
		return domain.Track{}, fmt.Errorf("failed to load tracks: %w", err)
	}

	track, err := firstTrack(result)
	if err != nil {
		return domain.Track{}, err
	}

	return convertLavalinkTrack(track)
}

// ResolveAudioURL returns the track URI, which is also its id.
func (c *LavalinkCatalog) ResolveAudioURL(_ context.Context, id domain.TrackID) (string, error) {
	if id == "" {
		return "", ports.ErrNoResults
	}
	return string(id), nil
}

// Close disconnects from all nodes.
func (c *LavalinkCatalog) Close() {
	if c.link != nil {
		c.link.Close()
	}
}

func firstTrack(result *lavalink.LoadResult) (lavalink.Track, error) {
	if result == nil {
		return lavalink.Track{}, ports.ErrNoResults
	}

	switch data := result.Data.(type) {
	case lavalink.Track:
		return data, nil

	case lavalink.Playlist:
		if len(data.Tracks) == 0 {
			return lavalink.Track{}, ports.ErrNoResults
		}
		return data.Tracks[0], nil

	case lavalink.Search:
		if len(data) == 0 {
			return lavalink.Track{}, ports.ErrNoResults
		}
		return data[0], nil

	case lavalink.Exception:
		return lavalink.Track{}, fmt.Errorf("lavalink exception: %s", data.Message)

	default:
		return lavalink.Track{}, ports.ErrNoResults
	}
}

func convertLavalinkTrack(track lavalink.Track) (domain.Track, error) {
	info := track.Info
	if info.URI == nil || *info.URI == "" {
		return domain.Track{}, fmt.Errorf("track %q has no URI", info.Title)
	}
	if info.IsStream {
		return domain.Track{}, fmt.Errorf("track %q is a live stream", info.Title)
	}

	return domain.Track{
		ID:          domain.TrackID(*info.URI),
		DisplayName: info.Title,
		ArtistName:  info.Author,
	}, nil
}
