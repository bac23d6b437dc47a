package infrastructure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
)

const searchPage = `<html><body>
<div class="search-result-list">
  <a class="search-result-list-item" href="/song.php?id=7">
    <div class="search-result-list-item-left-song"> 晴天 </div>
    <div class="search-result-list-item-left-singer">周杰伦</div>
  </a>
  <a class="search-result-list-item" href="https://other.example/song.php?id=8">
    <div class="search-result-list-item-left-song">晴天 (Live)</div>
  </a>
  <a class="search-result-list-item">
    <div class="search-result-list-item-left-song">no link</div>
  </a>
</div>
</body></html>`

const songPage = `<html><head>
<script src="/js/APlayer.min.js"></script>
<script>
const ap = new APlayer({
    container: document.getElementById('aplayer'),
    audio: [{
        name: '晴天',
        artist: '周杰伦',
        url: 'https:\/\/cdn.example\/audio\/7.mp3',
        cover: '/cover/7.jpg'
    }]
});
</script>
</head><body><div id="aplayer"></div></body></html>`

func TestParseSearchResults(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(searchPage))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	base, _ := url.Parse("https://music.pjmp3.com/search.php?keyword=x")

	results := parseSearchResults(doc.Selection, base)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}

	want := []scrapeResult{
		{Title: "晴天", Artist: "周杰伦", PageURL: "https://music.pjmp3.com/song.php?id=7"},
		{Title: "晴天 (Live)", Artist: unknownArtist, PageURL: "https://other.example/song.php?id=8"},
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("result %d = %+v, want %+v", i, results[i], want[i])
		}
	}
}

func TestParseSearchResults_LimitsToFive(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for range 8 {
		b.WriteString(`<a class="search-result-list-item" href="/s"><span class="search-result-list-item-left-song">x</span></a>`)
	}
	b.WriteString("</body></html>")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	base, _ := url.Parse("https://music.pjmp3.com/")

	if got := len(parseSearchResults(doc.Selection, base)); got != maxScrapeResults {
		t.Errorf("expected %d results, got %d", maxScrapeResults, got)
	}
}

func TestExtractAudioURL(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{
			name:   "aplayer options",
			script: songPage,
			want:   "https://cdn.example/audio/7.mp3",
		},
		{
			name:   "double quotes",
			script: `new APlayer({audio:[{"name":"a","url":"https://cdn.example/a.m4a"}]})`,
			want:   "https://cdn.example/a.m4a",
		},
		{
			name:   "unrelated script",
			script: `var url = 'https://example.com';`,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractAudioURL(tt.script); got != tt.want {
				t.Errorf("extractAudioURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScrapeSearch_SearchExternal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("keyword") != "晴天" {
			_, _ = w.Write([]byte("<html><body></body></html>"))
			return
		}
		_, _ = w.Write([]byte(searchPage))
	})
	mux.HandleFunc("/song.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(songPage))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	search, err := NewScrapeSearch(server.URL, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	track, err := search.SearchExternal(context.Background(), "晴天")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if track.DisplayName != "晴天" || track.ArtistName != "周杰伦" {
		t.Errorf("unexpected track %+v", track)
	}
	if track.AudioURL != "https://cdn.example/audio/7.mp3" {
		t.Errorf("unexpected audio url %q", track.AudioURL)
	}
	if track.ID != server.URL+"/song.php?id=7" {
		t.Errorf("unexpected id %q", track.ID)
	}

	if _, err := search.SearchExternal(context.Background(), "nothing"); !errors.Is(err, ports.ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}
}
