package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

// DefaultScrapeBaseURL is the secondary music source.
const DefaultScrapeBaseURL = "https://music.pjmp3.com"

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	maxScrapeResults = 5
	unknownTitle     = "未知歌曲"
	unknownArtist    = "未知歌手"
)

// The song page embeds an APlayer whose first audio entry carries the stream URL.
var aplayerAudioURL = regexp.MustCompile(`audio['"]?\s*:\s*\[\s*\{[^}]*?\burl['"]?\s*:\s*['"]([^'"]+)['"]`)

// Compile-time check that ScrapeSearch implements ports.ExternalSearcher.
var _ ports.ExternalSearcher = (*ScrapeSearch)(nil)

// ScrapeSearch finds tracks on the secondary source by scraping its search and song pages.
type ScrapeSearch struct {
	baseURL *url.URL
	timeout time.Duration
}

// NewScrapeSearch creates a new ScrapeSearch.
func NewScrapeSearch(baseURL string, timeout time.Duration) (*ScrapeSearch, error) {
	if baseURL == "" {
		baseURL = DefaultScrapeBaseURL
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid scrape base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ScrapeSearch{baseURL: parsed, timeout: timeout}, nil
}

type scrapeResult struct {
	Title   string
	Artist  string
	PageURL string
}

// SearchExternal returns the first search hit together with its audio URL.
func (s *ScrapeSearch) SearchExternal(ctx context.Context, query string) (domain.ExternalTrack, error) {
	searchURL := s.baseURL.JoinPath("search.php")
	searchURL.RawQuery = url.Values{"keyword": {query}}.Encode()

	var results []scrapeResult
	c := s.collector(ctx)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		results = parseSearchResults(e.DOM, e.Request.URL)
	})
	if err := s.visit(c, searchURL.String()); err != nil {
		return domain.ExternalTrack{}, fmt.Errorf("failed to load search page: %w", err)
	}
	if len(results) == 0 {
		return domain.ExternalTrack{}, ports.ErrNoResults
	}

	first := results[0]
	slog.Debug("scraped search results", "query", query, "count", len(results), "first", first.PageURL)

	var audioURL string
	c = s.collector(ctx)
	c.OnHTML("script", func(e *colly.HTMLElement) {
		if audioURL != "" {
			return
		}
		audioURL = extractAudioURL(e.Text)
	})
	if err := s.visit(c, first.PageURL); err != nil {
		return domain.ExternalTrack{}, fmt.Errorf("failed to load song page: %w", err)
	}
	if audioURL == "" {
		return domain.ExternalTrack{}, fmt.Errorf("no audio url on %s", first.PageURL)
	}

	return domain.ExternalTrack{
		ID:          first.PageURL,
		DisplayName: first.Title,
		ArtistName:  first.Artist,
		AudioURL:    audioURL,
	}, nil
}

func (s *ScrapeSearch) collector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(browserUserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.5")
	})
	return c
}

func (s *ScrapeSearch) visit(c *colly.Collector, target string) error {
	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		slog.Warn("scrape request failed", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
		visitErr = err
	})
	if err := c.Visit(target); err != nil {
		return err
	}
	c.Wait()
	return visitErr
}

func parseSearchResults(doc *goquery.Selection, base *url.URL) []scrapeResult {
	var results []scrapeResult
	doc.Find("a.search-result-list-item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		href, ok := item.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return true
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}

		title := strings.TrimSpace(item.Find(".search-result-list-item-left-song").First().Text())
		if title == "" {
			title = unknownTitle
		}
		artist := strings.TrimSpace(item.Find(".search-result-list-item-left-singer").First().Text())
		if artist == "" {
			artist = unknownArtist
		}

		results = append(results, scrapeResult{
			Title:   title,
			Artist:  artist,
			PageURL: base.ResolveReference(ref).String(),
		})
		return len(results) < maxScrapeResults
	})
	return results
}

func extractAudioURL(script string) string {
	m := aplayerAudioURL.FindStringSubmatch(script)
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[1], `\/`, "/")
}
