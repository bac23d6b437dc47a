package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

const (
	// DefaultNeteaseBaseURL is the public NetEase Cloud Music API host.
	DefaultNeteaseBaseURL = "https://music.163.com"

	// DefaultFallbackPlaylistID is the playlist played when nobody has requested anything.
	DefaultFallbackPlaylistID = "9162892605"

	neteaseBitrate = 320000
	neteaseOK      = 200
)

// errNoAudioURL is returned when a track has no playable URL, usually for licensing reasons.
var errNoAudioURL = errors.New("track has no playable url")

// Compile-time checks that NeteaseCatalog implements the catalog ports.
var (
	_ ports.Catalog        = (*NeteaseCatalog)(nil)
	_ ports.FallbackSource = (*NeteaseCatalog)(nil)
)

// NeteaseConfig contains NetEase API configuration.
type NeteaseConfig struct {
	BaseURL            string
	Cookie             string
	FallbackPlaylistID string
	Timeout            time.Duration
}

// NeteaseCatalog searches NetEase Cloud Music and resolves tracks to stream URLs.
type NeteaseCatalog struct {
	client     *http.Client
	baseURL    string
	cookie     string
	playlistID string
	pick       func(n int) int
}

// NewNeteaseCatalog creates a new NeteaseCatalog.
func NewNeteaseCatalog(config NeteaseConfig) *NeteaseCatalog {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultNeteaseBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &NeteaseCatalog{
		client:     &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		cookie:     config.Cookie,
		playlistID: config.FallbackPlaylistID,
		pick:       rand.IntN,
	}
}

type neteaseArtist struct {
	Name string `json:"name"`
}

type neteaseSong struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Artists []neteaseArtist `json:"ar"`
}

func (s neteaseSong) track() domain.Track {
	artist := ""
	if len(s.Artists) > 0 {
		artist = s.Artists[0].Name
	}
	return domain.Track{
		ID:          domain.TrackID(strconv.FormatInt(s.ID, 10)),
		DisplayName: s.Name,
		ArtistName:  artist,
	}
}

type neteaseSearchResponse struct {
	Code   int `json:"code"`
	Result struct {
		Songs []neteaseSong `json:"songs"`
	} `json:"result"`
}

type neteaseDetailResponse struct {
	Code  int           `json:"code"`
	Songs []neteaseSong `json:"songs"`
}

type neteaseURLResponse struct {
	Code int `json:"code"`
	Data []struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	} `json:"data"`
}

type neteasePlaylistResponse struct {
	Code     int `json:"code"`
	Playlist struct {
		TrackIDs []struct {
			ID int64 `json:"id"`
		} `json:"trackIds"`
	} `json:"playlist"`
}

// Search looks up a numeric track id directly and runs a keyword search otherwise.
func (c *NeteaseCatalog) Search(ctx context.Context, query string) (domain.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Track{}, ports.ErrNoResults
	}

	if isDigits(query) {
		return c.trackDetail(ctx, query)
	}

	params := url.Values{}
	params.Set("s", query)
	params.Set("type", "1")
	params.Set("limit", "1")
	params.Set("offset", "0")

	var resp neteaseSearchResponse
	if err := c.get(ctx, "/api/cloudsearch/pc", params, &resp); err != nil {
		return domain.Track{}, fmt.Errorf("failed to search tracks: %w", err)
	}
	if len(resp.Result.Songs) == 0 {
		return domain.Track{}, ports.ErrNoResults
	}
	return resp.Result.Songs[0].track(), nil
}

func (c *NeteaseCatalog) trackDetail(ctx context.Context, id string) (domain.Track, error) {
	params := url.Values{}
	params.Set("c", fmt.Sprintf(`[{"id":%s}]`, id))

	var resp neteaseDetailResponse
	if err := c.get(ctx, "/api/v3/song/detail", params, &resp); err != nil {
		return domain.Track{}, fmt.Errorf("failed to get track detail: %w", err)
	}
	if len(resp.Songs) == 0 {
		return domain.Track{}, ports.ErrNoResults
	}
	return resp.Songs[0].track(), nil
}

// ResolveAudioURL returns the 320kbps stream URL for a track.
func (c *NeteaseCatalog) ResolveAudioURL(ctx context.Context, id domain.TrackID) (string, error) {
	params := url.Values{}
	params.Set("ids", fmt.Sprintf("[%s]", id))
	params.Set("br", strconv.Itoa(neteaseBitrate))

	var resp neteaseURLResponse
	if err := c.get(ctx, "/api/song/enhance/player/url", params, &resp); err != nil {
		return "", fmt.Errorf("failed to get track url: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		slog.Warn("track has no playable url", "track_id", id)
		return "", errNoAudioURL
	}
	return resp.Data[0].URL, nil
}

// RandomFallback picks a random track from the fallback playlist.
func (c *NeteaseCatalog) RandomFallback(ctx context.Context) (domain.QueueItem, error) {
	if c.playlistID == "" {
		return nil, errors.New("no fallback playlist configured")
	}

	params := url.Values{}
	params.Set("id", c.playlistID)

	var resp neteasePlaylistResponse
	if err := c.get(ctx, "/api/v6/playlist/detail", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to get playlist %s: %w", c.playlistID, err)
	}

	ids := resp.Playlist.TrackIDs
	if len(ids) == 0 {
		return nil, fmt.Errorf("playlist %s is empty", c.playlistID)
	}

	id := ids[c.pick(len(ids))].ID
	track, err := c.trackDetail(ctx, strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	return track, nil
}

func (c *NeteaseCatalog) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Referer", c.baseURL+"/")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if coder, ok := out.(interface{ code() int }); ok && coder.code() != neteaseOK {
		return fmt.Errorf("api returned code %d", coder.code())
	}
	return nil
}

func (r *neteaseSearchResponse) code() int   { return r.Code }
func (r *neteaseDetailResponse) code() int   { return r.Code }
func (r *neteaseURLResponse) code() int      { return r.Code }
func (r *neteasePlaylistResponse) code() int { return r.Code }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
