package song_request

import (
	"errors"
	"fmt"
	"time"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/usecases"
)

// Request log backends.
const (
	RequestStoreFile     = "file"
	RequestStoreSQLite   = "sqlite"
	RequestStorePostgres = "postgres"
)

// Catalog backends.
const (
	CatalogNetease  = "netease"
	CatalogLavalink = "lavalink"
)

// Config holds the song request module configuration.
type Config struct {
	QueueCapacity   int      `env:"QUEUE_CAPACITY" envDefault:"5"`
	HistoryCapacity int      `env:"HISTORY_CAPACITY" envDefault:"50"`
	RequestPrefixes []string `env:"REQUEST_PREFIXES" envDefault:"点歌:" envSeparator:","`

	AdminSecret      string   `env:"ADMIN_SECRET" envDefault:"mysecret"`
	AdminKeyTimezone string   `env:"ADMIN_KEY_TIMEZONE"`
	DefaultAdmins    []string `env:"DEFAULT_ADMINS" envSeparator:","`
	DefaultWhitelist []string `env:"DEFAULT_WHITELIST" envSeparator:","`

	WhitelistFile  string `env:"WHITELIST_FILE" envDefault:"config/whitelist.json"`
	FusedKeysFile  string `env:"FUSED_KEYS_FILE" envDefault:"data/fused_keys.json"`
	RequestLogFile string `env:"REQUEST_LOG_FILE" envDefault:"data/requests.log"`

	RequestStore  string `env:"REQUEST_STORE" envDefault:"file"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"data/requests.db"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DatabaseDebug bool   `env:"DATABASE_DEBUG" envDefault:"false"`

	MPVPath   string `env:"MPV_PATH" envDefault:"mpv"`
	MPVIPCDir string `env:"MPV_IPC_DIR"`
	YTDLPPath string `env:"YTDLP_PATH" envDefault:"yt-dlp"`

	VideoPlaybackEnabled bool          `env:"VIDEO_PLAYBACK_ENABLED" envDefault:"true"`
	VideoTimeoutBuffer   time.Duration `env:"VIDEO_TIMEOUT_BUFFER" envDefault:"3s"`
	VideoProbeFallback   time.Duration `env:"VIDEO_PROBE_FALLBACK" envDefault:"60s"`
	FallbackEnabled      bool          `env:"FALLBACK_ENABLED" envDefault:"true"`

	Catalog                 string `env:"CATALOG" envDefault:"netease"`
	NeteaseBaseURL          string `env:"NETEASE_BASE_URL"`
	NeteaseCookie           string `env:"NETEASE_COOKIE"`
	NeteaseFallbackPlaylist string `env:"NETEASE_FALLBACK_PLAYLIST" envDefault:"9162892605"`

	LavalinkAddress  string `env:"LAVALINK_ADDRESS"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD"`
	LavalinkUserID   string `env:"LAVALINK_USER_ID"`

	SpotifyClientID         string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret     string `env:"SPOTIFY_CLIENT_SECRET"`
	SpotifyFallbackPlaylist string `env:"SPOTIFY_FALLBACK_PLAYLIST"`

	ExternalSearchEnabled bool   `env:"EXTERNAL_SEARCH_ENABLED" envDefault:"false"`
	ExternalSearchBaseURL string `env:"EXTERNAL_SEARCH_BASE_URL" envDefault:"https://music.pjmp3.com"`

	CatalogCacheRedisURL string        `env:"CATALOG_CACHE_REDIS_URL"`
	CatalogCacheTTL      time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"24h"`
}

// SpotifyEnabled reports whether the Spotify playlist seeds the fallback.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyFallbackPlaylist != ""
}

// Location returns the time zone admin keys are derived in.
func (c *Config) Location() (*time.Location, error) {
	if c.AdminKeyTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.AdminKeyTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_KEY_TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.QueueCapacity < 1 {
		errs = append(errs, errors.New("QUEUE_CAPACITY must be at least 1"))
	}
	if c.HistoryCapacity < 1 {
		errs = append(errs, errors.New("HISTORY_CAPACITY must be at least 1"))
	}
	if c.AdminSecret == "" {
		errs = append(errs, errors.New("ADMIN_SECRET must not be empty"))
	}
	if c.VideoTimeoutBuffer < 0 || c.VideoTimeoutBuffer > usecases.MaxTimeoutBuffer {
		errs = append(errs, fmt.Errorf("VIDEO_TIMEOUT_BUFFER must be between 0s and %s", usecases.MaxTimeoutBuffer))
	}
	if c.VideoProbeFallback <= 0 {
		errs = append(errs, errors.New("VIDEO_PROBE_FALLBACK must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	switch c.RequestStore {
	case RequestStoreFile, RequestStoreSQLite:
	case RequestStorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres request store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown REQUEST_STORE %q", c.RequestStore))
	}

	switch c.Catalog {
	case CatalogNetease:
	case CatalogLavalink:
		if c.LavalinkAddress == "" || c.LavalinkPassword == "" || c.LavalinkUserID == "" {
			errs = append(errs, errors.New("LAVALINK_ADDRESS, LAVALINK_PASSWORD and LAVALINK_USER_ID are required for the lavalink catalog"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOG %q", c.Catalog))
	}

	if c.SpotifyEnabled() && (c.SpotifyClientID == "" || c.SpotifyClientSecret == "") {
		errs = append(errs, errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required for SPOTIFY_FALLBACK_PLAYLIST"))
	}

	return errors.Join(errs...)
}
