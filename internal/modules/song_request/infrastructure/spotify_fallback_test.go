package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zmb3/spotify/v2"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

type stubCatalog struct {
	queries []string
	err     error
}

func (c *stubCatalog) Search(_ context.Context, query string) (domain.Track, error) {
	c.queries = append(c.queries, query)
	if c.err != nil {
		return domain.Track{}, c.err
	}
	return domain.Track{ID: "1", DisplayName: query, ArtistName: "catalog"}, nil
}

func (c *stubCatalog) ResolveAudioURL(_ context.Context, id domain.TrackID) (string, error) {
	return "https://media.example/" + string(id), nil
}

// newSpotifyServer serves a playlist of total tracks in pages of two.
func newSpotifyServer(t *testing.T, total int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/playlists/pl1/tracks") {
			http.NotFound(w, r)
			return
		}
		requests.Add(1)

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		items := []map[string]any{}
		for i := offset; i < total && i < offset+2; i++ {
			items = append(items, map[string]any{
				"track": map[string]any{
					"type":    "track",
					"id":      fmt.Sprintf("t%d", i),
					"name":    fmt.Sprintf("Song %d", i),
					"artists": []map[string]any{{"name": fmt.Sprintf("Artist %d", i)}},
				},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":  items,
			"total":  total,
			"offset": offset,
			"limit":  2,
		})
	}))
	t.Cleanup(server.Close)

	return server, &requests
}

func newTestSpotifyFallback(t *testing.T, server *httptest.Server, catalog ports.Catalog) *SpotifyFallback {
	t.Helper()
	client := spotify.New(server.Client(), spotify.WithBaseURL(server.URL+"/"))
	f, err := newSpotifyFallback(client, "https://open.spotify.com/playlist/pl1?si=abc", catalog)
	if err != nil {
		t.Fatalf("newSpotifyFallback() error: %v", err)
	}
	return f
}

func TestSpotifyFallback_RandomFallback(t *testing.T) {
	server, requests := newSpotifyServer(t, 5)
	catalog := &stubCatalog{}
	f := newTestSpotifyFallback(t, server, catalog)
	f.pick = func(n int) int {
		if n != 5 {
			t.Errorf("expected 5 entries across pages, got %d", n)
		}
		return 4
	}

	item, err := f.RandomFallback(context.Background())
	if err != nil {
		t.Fatalf("RandomFallback() error: %v", err)
	}
	if _, ok := item.(domain.Track); !ok {
		t.Fatalf("expected a catalog track, got %T", item)
	}
	if len(catalog.queries) != 1 || catalog.queries[0] != "Song 4 Artist 4" {
		t.Errorf("unexpected catalog queries: %v", catalog.queries)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 page requests, got %d", got)
	}

	// The playlist stays cached until the refresh interval passes.
	if _, err := f.RandomFallback(context.Background()); err != nil {
		t.Fatalf("RandomFallback() error: %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected cached playlist, got %d requests", got)
	}

	later := time.Now().Add(spotifyRefreshInterval + time.Minute)
	f.now = func() time.Time { return later }
	if _, err := f.RandomFallback(context.Background()); err != nil {
		t.Fatalf("RandomFallback() error: %v", err)
	}
	if got := requests.Load(); got != 6 {
		t.Errorf("expected a reload after the refresh interval, got %d requests", got)
	}
}

func TestSpotifyFallback_Errors(t *testing.T) {
	t.Run("empty playlist", func(t *testing.T) {
		server, _ := newSpotifyServer(t, 0)
		f := newTestSpotifyFallback(t, server, &stubCatalog{})

		if _, err := f.RandomFallback(context.Background()); !errors.Is(err, ports.ErrNoResults) {
			t.Errorf("expected ErrNoResults, got %v", err)
		}
	})

	t.Run("catalog miss", func(t *testing.T) {
		server, _ := newSpotifyServer(t, 2)
		f := newTestSpotifyFallback(t, server, &stubCatalog{err: ports.ErrNoResults})

		if _, err := f.RandomFallback(context.Background()); !errors.Is(err, ports.ErrNoResults) {
			t.Errorf("expected ErrNoResults, got %v", err)
		}
	})

	t.Run("api failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":{"status":500,"message":"boom"}}`, http.StatusInternalServerError)
		}))
		defer server.Close()
		f := newTestSpotifyFallback(t, server, &stubCatalog{})

		if _, err := f.RandomFallback(context.Background()); err == nil {
			t.Error("expected error")
		}
	})
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "37i9dQZF1DXcBWIGoYBM5M", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{input: "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{input: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=x", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{input: "https://example.com/list/1", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := extractPlaylistID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractPlaylistID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("extractPlaylistID() = %q, want %q", got, tt.want)
			}
		})
	}
}
