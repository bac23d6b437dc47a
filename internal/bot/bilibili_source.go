package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	bilibiliTimelineLayout = "2006-01-02 15:04:05"
	bilibiliUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// maxSeenMessages bounds the dedup set. It is cleared when exceeded.
	maxSeenMessages = 200
)

// Compile-time check that BilibiliSource implements ChatSource.
var _ ChatSource = (*BilibiliSource)(nil)

// BilibiliSource polls the recent-messages endpoint of a live room. The
// endpoint is read-only, so replies and announcements are logged.
type BilibiliSource struct {
	client   *http.Client
	apiURL   string
	roomID   string
	interval time.Duration
	now      func() time.Time

	lastTimeline string
	seen         map[string]struct{}
}

// NewBilibiliSource creates a new BilibiliSource.
func NewBilibiliSource(apiURL, roomID string, interval time.Duration) *BilibiliSource {
	return &BilibiliSource{
		client:   &http.Client{Timeout: 10 * time.Second},
		apiURL:   apiURL,
		roomID:   roomID,
		interval: interval,
		now:      time.Now,
		seen:     make(map[string]struct{}),
	}
}

func (s *BilibiliSource) Name() string {
	return SourceBilibili
}

// Announce logs text; the room cannot be written to.
func (s *BilibiliSource) Announce(text string) error {
	slog.Info("announcement", "source", SourceBilibili, "room_id", s.roomID, "text", text)
	return nil
}

// Run polls the room until ctx is cancelled. Poll failures are logged and retried.
func (s *BilibiliSource) Run(ctx context.Context, deliver DeliverFunc) error {
	// Messages sent before startup are history, not requests.
	s.lastTimeline = s.now().Format(bilibiliTimelineLayout)
	slog.Info("started listening to room", "room_id", s.roomID, "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		messages, err := s.poll(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Warn("failed to poll room", "room_id", s.roomID, "error", err)
		}
		for _, msg := range messages {
			deliver(msg, s.responder(msg.Username))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *BilibiliSource) responder(username string) Responder {
	return ResponderFunc(func(text string) error {
		slog.Info("reply", "source", SourceBilibili, "to", username, "text", text)
		return nil
	})
}

type bilibiliResponse struct {
	Code int `json:"code"`
	Data struct {
		Room []bilibiliMessage `json:"room"`
	} `json:"data"`
}

type bilibiliMessage struct {
	Text     string `json:"text"`
	Nickname string `json:"nickname"`
	Timeline string `json:"timeline"`
}

// poll fetches the room and returns the messages not delivered yet.
func (s *BilibiliSource) poll(ctx context.Context) ([]ChatMessage, error) {
	query := url.Values{}
	query.Set("roomid", s.roomID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", bilibiliUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body bilibiliResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Code != 0 {
		return nil, fmt.Errorf("unexpected response code %d", body.Code)
	}

	return s.filterNew(body.Data.Room), nil
}

// filterNew drops messages already seen or older than the last delivered one.
// Timelines compare lexically because of their fixed layout.
func (s *BilibiliSource) filterNew(room []bilibiliMessage) []ChatMessage {
	var (
		messages []ChatMessage
		latest   string
	)

	for _, m := range room {
		text := strings.TrimSpace(html.UnescapeString(m.Text))
		key := m.Timeline + "-" + text + "-" + m.Nickname
		if _, ok := s.seen[key]; ok {
			continue
		}
		if m.Timeline <= s.lastTimeline {
			continue
		}

		s.seen[key] = struct{}{}
		latest = m.Timeline
		at, err := time.ParseInLocation(bilibiliTimelineLayout, m.Timeline, time.Local)
		if err != nil {
			at = s.now()
		}
		messages = append(messages, ChatMessage{
			Source:   SourceBilibili,
			Username: m.Nickname,
			Text:     text,
			At:       at,
		})
	}

	if len(messages) > 0 {
		s.lastTimeline = latest
		if len(s.seen) > maxSeenMessages {
			clear(s.seen)
		}
	}

	return messages
}
