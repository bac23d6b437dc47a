package infrastructure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

func newNeteaseServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNeteaseCatalog_Search(t *testing.T) {
	routes := map[string]string{
		"/api/cloudsearch/pc": `{"code":200,"result":{"songs":[{"id":42,"name":"晴天","ar":[{"name":"周杰伦"},{"name":"x"}]}]}}`,
		"/api/v3/song/detail": `{"code":200,"songs":[{"id":1001,"name":"稻香","ar":[{"name":"周杰伦"}]}]}`,
	}

	tests := []struct {
		name    string
		routes  map[string]string
		query   string
		want    domain.Track
		wantErr error
	}{
		{
			name:   "keyword search",
			routes: routes,
			query:  "晴天",
			want:   domain.Track{ID: "42", DisplayName: "晴天", ArtistName: "周杰伦"},
		},
		{
			name:   "numeric id uses detail",
			routes: routes,
			query:  "1001",
			want:   domain.Track{ID: "1001", DisplayName: "稻香", ArtistName: "周杰伦"},
		},
		{
			name:    "no songs",
			routes:  map[string]string{"/api/cloudsearch/pc": `{"code":200,"result":{}}`},
			query:   "nothing",
			wantErr: ports.ErrNoResults,
		},
		{
			name:    "blank query",
			routes:  routes,
			query:   "  ",
			wantErr: ports.ErrNoResults,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newNeteaseServer(t, tt.routes)
			catalog := NewNeteaseCatalog(NeteaseConfig{BaseURL: server.URL})

			got, err := catalog.Search(context.Background(), tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Search() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNeteaseCatalog_SearchAPIError(t *testing.T) {
	server := newNeteaseServer(t, map[string]string{
		"/api/cloudsearch/pc": `{"code":-460,"msg":"cheating"}`,
	})
	catalog := NewNeteaseCatalog(NeteaseConfig{BaseURL: server.URL})

	_, err := catalog.Search(context.Background(), "晴天")
	if err == nil || errors.Is(err, ports.ErrNoResults) {
		t.Errorf("expected api error, got %v", err)
	}
}

func TestNeteaseCatalog_ResolveAudioURL(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "playable",
			body: `{"code":200,"data":[{"id":42,"url":"https://m701.music.126.net/42.mp3"}]}`,
			want: "https://m701.music.126.net/42.mp3",
		},
		{
			name:    "licensed out",
			body:    `{"code":200,"data":[{"id":42,"url":null}]}`,
			wantErr: true,
		},
		{
			name:    "no data",
			body:    `{"code":200,"data":[]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newNeteaseServer(t, map[string]string{"/api/song/enhance/player/url": tt.body})
			catalog := NewNeteaseCatalog(NeteaseConfig{BaseURL: server.URL})

			got, err := catalog.ResolveAudioURL(context.Background(), "42")
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("ResolveAudioURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNeteaseCatalog_RandomFallback(t *testing.T) {
	server := newNeteaseServer(t, map[string]string{
		"/api/v6/playlist/detail": `{"code":200,"playlist":{"trackIds":[{"id":1},{"id":1001},{"id":3}]}}`,
		"/api/v3/song/detail":     `{"code":200,"songs":[{"id":1001,"name":"稻香","ar":[{"name":"周杰伦"}]}]}`,
	})
	catalog := NewNeteaseCatalog(NeteaseConfig{BaseURL: server.URL, FallbackPlaylistID: DefaultFallbackPlaylistID})
	catalog.pick = func(n int) int { return 1 }

	item, err := catalog.RandomFallback(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	track, ok := item.(domain.Track)
	if !ok || track.ID != "1001" {
		t.Errorf("expected track 1001, got %+v", item)
	}
}

func TestNeteaseCatalog_RandomFallbackEmptyPlaylist(t *testing.T) {
	server := newNeteaseServer(t, map[string]string{
		"/api/v6/playlist/detail": `{"code":200,"playlist":{"trackIds":[]}}`,
	})
	catalog := NewNeteaseCatalog(NeteaseConfig{BaseURL: server.URL, FallbackPlaylistID: "1"})

	if _, err := catalog.RandomFallback(context.Background()); err == nil {
		t.Error("expected error for empty playlist")
	}
}
