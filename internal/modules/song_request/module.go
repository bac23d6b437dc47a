package song_request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"

	"github.com/sglre6355/reqbox/internal/bot"
	"github.com/sglre6355/reqbox/internal/modules/song_request/application/events"
	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/application/usecases"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
	"github.com/sglre6355/reqbox/internal/modules/song_request/infrastructure"
	"github.com/sglre6355/reqbox/internal/modules/song_request/presentation"
)

func init() {
	bot.Register(&SongRequestModule{})
}

// Compile-time interface checks.
var (
	_ bot.ConfigurableModule = (*SongRequestModule)(nil)
	_ bot.RouteProvider      = (*SongRequestModule)(nil)
)

// SongRequestModule turns chat requests into a played queue.
type SongRequestModule struct {
	config       *Config
	chatHandler  *presentation.ChatHandler
	statusRoutes *presentation.StatusRoutes
	orchestrator *usecases.Orchestrator

	// Event-driven components
	eventBus            *events.Bus
	notificationHandler *events.NotificationEventHandler

	// closers release adapters in reverse order of creation.
	closers []func() error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Name returns the module name.
func (m *SongRequestModule) Name() string {
	return "song_request"
}

// MessageHandlers returns the chat handlers for this module.
func (m *SongRequestModule) MessageHandlers() []bot.MessageHandler {
	if m.chatHandler == nil {
		return nil
	}
	return []bot.MessageHandler{m.chatHandler.HandleMessage}
}

// Routes mounts the status endpoints.
func (m *SongRequestModule) Routes(r chi.Router) {
	if m.statusRoutes != nil {
		m.statusRoutes.Mount(r)
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *SongRequestModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init builds the adapters and services and starts the playback loop.
func (m *SongRequestModule) Init(deps bot.ModuleDependencies) error {
	if m.config == nil {
		if err := m.LoadConfig(); err != nil {
			return err
		}
	}
	cfg := m.config

	m.ctx, m.cancel = context.WithCancel(context.Background())

	if err := m.init(cfg, deps); err != nil {
		m.cancel()
		if closeErr := m.closeAdapters(); closeErr != nil {
			slog.Warn("failed to release adapters", "error", closeErr)
		}
		return err
	}

	slog.Info("song_request module initialized",
		"catalog", cfg.Catalog,
		"request_store", cfg.RequestStore,
		"queue_capacity", cfg.QueueCapacity,
	)

	return nil
}

func (m *SongRequestModule) init(cfg *Config, deps bot.ModuleDependencies) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Create infrastructure
	recorder, err := m.newRequestRecorder(cfg)
	if err != nil {
		return err
	}

	catalog, fallback, err := m.newCatalog(cfg)
	if err != nil {
		return err
	}

	var external ports.ExternalSearcher
	if cfg.ExternalSearchEnabled {
		scraper, err := infrastructure.NewScrapeSearch(cfg.ExternalSearchBaseURL, 0)
		if err != nil {
			return fmt.Errorf("failed to create external search: %w", err)
		}
		external = scraper
	}

	whitelistStore := infrastructure.NewJSONWhitelistStore(cfg.WhitelistFile)
	fuseStore := infrastructure.NewJSONFuseStore(cfg.FusedKeysFile)
	launcher := infrastructure.NewMPVLauncher(infrastructure.MPVConfig{
		Path:   cfg.MPVPath,
		IPCDir: cfg.MPVIPCDir,
	})
	prober := infrastructure.NewYTDLPProber(cfg.YTDLPPath, 0)

	// Create domain state and the event bus
	queue := domain.NewRequestQueue(cfg.QueueCapacity)
	history := domain.NewHistory(cfg.HistoryCapacity)
	m.eventBus = events.NewBus(events.DefaultEventBufferSize)

	// Create services
	resolver := usecases.NewItemResolver(catalog, external, cfg.VideoPlaybackEnabled)
	permissions := usecases.NewPermissionService(cfg.DefaultAdmins, cfg.DefaultWhitelist, whitelistStore)
	adminKey := usecases.NewAdminKeyService(cfg.AdminSecret, fuseStore, loc)
	requests := usecases.NewRequestService(permissions, queue, resolver, recorder, m.eventBus)
	queueService := usecases.NewQueueService(queue, resolver, m.eventBus)

	orchestratorConfig := usecases.DefaultOrchestratorConfig()
	orchestratorConfig.FallbackEnabled = cfg.FallbackEnabled && fallback != nil
	orchestratorConfig.TimeoutBuffer = cfg.VideoTimeoutBuffer
	orchestratorConfig.ProbeFallback = cfg.VideoProbeFallback

	m.orchestrator = usecases.NewOrchestrator(
		queue,
		catalog,
		fallback,
		launcher,
		prober,
		history,
		m.eventBus,
		orchestratorConfig,
	)

	// Create application event handlers
	var announcer ports.Announcer
	if deps.Announcer != nil {
		announcer = deps.Announcer
	}
	m.notificationHandler = events.NewNotificationEventHandler(announcer, m.eventBus)
	m.notificationHandler.Start(m.ctx)

	// Create presentation handlers
	commands := presentation.NewCommandRouter(permissions, adminKey, requests, queueService, m.orchestrator)
	m.chatHandler = presentation.NewChatHandler(permissions, adminKey, requests, commands, cfg.RequestPrefixes)
	m.statusRoutes = presentation.NewStatusRoutes(queueService, m.orchestrator)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.orchestrator.Run(m.ctx)
	}()

	return nil
}

func (m *SongRequestModule) newRequestRecorder(cfg *Config) (ports.RequestRecorder, error) {
	switch cfg.RequestStore {
	case RequestStoreSQLite:
		store, err := infrastructure.NewSQLiteRequestStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, store.Close)
		return store, nil
	case RequestStorePostgres:
		store, err := infrastructure.NewPostgresRequestStore(m.ctx, cfg.DatabaseURL, cfg.DatabaseDebug)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, store.Close)
		return store, nil
	default:
		requestLog, err := infrastructure.NewFileRequestLog(cfg.RequestLogFile)
		if err != nil {
			return nil, err
		}
		m.closers = append(m.closers, requestLog.Close)
		return requestLog, nil
	}
}

// newCatalog returns the catalog, wrapped in the search cache when one is
// configured, and the fallback source to use when the queue is empty.
func (m *SongRequestModule) newCatalog(cfg *Config) (ports.Catalog, ports.FallbackSource, error) {
	var (
		catalog  ports.Catalog
		fallback ports.FallbackSource
	)

	switch cfg.Catalog {
	case CatalogLavalink:
		lavalinkCatalog, err := infrastructure.NewLavalinkCatalog(m.ctx, infrastructure.LavalinkConfig{
			Address:  cfg.LavalinkAddress,
			Password: cfg.LavalinkPassword,
			UserID:   cfg.LavalinkUserID,
		})
		if err != nil {
			return nil, nil, err
		}
		m.closers = append(m.closers, func() error {
			lavalinkCatalog.Close()
			return nil
		})
		catalog = lavalinkCatalog
	default:
		netease := infrastructure.NewNeteaseCatalog(infrastructure.NeteaseConfig{
			BaseURL:            cfg.NeteaseBaseURL,
			Cookie:             cfg.NeteaseCookie,
			FallbackPlaylistID: cfg.NeteaseFallbackPlaylist,
		})
		catalog = netease
		fallback = netease
	}

	if cfg.CatalogCacheRedisURL != "" {
		cache, err := infrastructure.NewRedisSearchCache(m.ctx, cfg.CatalogCacheRedisURL)
		if err != nil {
			// The cache is an optimization; run without it.
			slog.Warn("failed to connect search cache", "error", err)
		} else {
			m.closers = append(m.closers, cache.Close)
			catalog = infrastructure.NewCachedCatalog(catalog, cache, cfg.CatalogCacheTTL)
		}
	}

	if cfg.SpotifyEnabled() {
		spotifyFallback, err := infrastructure.NewSpotifyFallback(m.ctx, infrastructure.SpotifyConfig{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			Playlist:     cfg.SpotifyFallbackPlaylist,
		}, catalog)
		if err != nil {
			return nil, nil, err
		}
		fallback = spotifyFallback
	}

	if cfg.FallbackEnabled && fallback == nil {
		slog.Warn("fallback playback disabled, the catalog has no fallback playlist", "catalog", cfg.Catalog)
	}

	return catalog, fallback, nil
}

func (m *SongRequestModule) closeAdapters() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

// Shutdown stops the playback loop and releases adapters.
func (m *SongRequestModule) Shutdown() error {
	// Cancel context first so the playback loop stops its player
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	if m.notificationHandler != nil {
		m.notificationHandler.Stop()
	}

	if m.eventBus != nil {
		m.eventBus.Close()
	}

	return m.closeAdapters()
}
