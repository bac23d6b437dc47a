package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	statusRequestTimeout  = 10 * time.Second
	statusShutdownTimeout = 5 * time.Second
)

// Bot manages the chat source lifecycle and module coordination.
type Bot struct {
	config   *Config
	source   ChatSource
	modules  []Module
	handlers []MessageHandler
	server   *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBot creates a new Bot instance with the given configuration.
func NewBot(cfg *Config) *Bot {
	return &Bot{
		config:   cfg,
		modules:  make([]Module, 0),
		handlers: make([]MessageHandler, 0),
	}
}

// LoadModules loads modules from the global registry.
func (b *Bot) LoadModules() {
	b.modules = Modules()
	slog.Info("loaded modules", "modules", globalRegistry.Names())
}

// Start initializes modules, starts the status server and begins reading chat.
func (b *Bot) Start() error {
	if b.source == nil {
		source, err := NewChatSource(b.config)
		if err != nil {
			return fmt.Errorf("failed to create chat source: %w", err)
		}
		b.source = source
	}

	if err := b.initModules(); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}

	b.buildHandlers()

	b.ctx, b.cancel = context.WithCancel(context.Background())

	if b.config.StatusAddr != "" {
		b.startStatusServer()
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.source.Run(b.ctx, b.dispatch); err != nil {
			slog.Error("chat source stopped", "source", b.source.Name(), "error", err)
		}
	}()

	slog.Info("started bot", "source", b.source.Name())

	return nil
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}

	var errs []error

	if b.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
		defer cancel()
		if err := b.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown status server: %w", err))
		}
	}

	b.wg.Wait()

	for _, mod := range b.modules {
		if err := mod.Shutdown(); err != nil {
			slog.Warn("failed to shutdown module", "module", mod.Name(), "error", err)
		}
	}

	return errors.Join(errs...)
}

// NewChatSource creates the source selected by cfg.ChatSource.
func NewChatSource(cfg *Config) (ChatSource, error) {
	switch cfg.ChatSource {
	case SourceBilibili:
		return NewBilibiliSource(cfg.BilibiliAPIURL, cfg.BilibiliRoomID, cfg.BilibiliPollInterval), nil
	case SourceDiscord:
		return NewDiscordSource(cfg.DiscordToken, cfg.DiscordChannelID)
	case SourceTelegram:
		return NewTelegramSource(cfg.TelegramToken, cfg.TelegramChatID)
	default:
		return nil, fmt.Errorf("unknown chat source %q", cfg.ChatSource)
	}
}

// initModules loads configuration for and initializes all loaded modules.
func (b *Bot) initModules() error {
	deps := ModuleDependencies{
		Announcer: b.source,
	}

	for _, mod := range b.modules {
		if configurable, ok := mod.(ConfigurableModule); ok {
			if err := configurable.LoadConfig(); err != nil {
				return fmt.Errorf("failed to load %s module config: %w", mod.Name(), err)
			}
		}
		if err := mod.Init(deps); err != nil {
			return fmt.Errorf("failed to initialize %s module: %w", mod.Name(), err)
		}
		slog.Debug("initialized module", "module", mod.Name())
	}

	moduleNames := make([]string, len(b.modules))
	for i, mod := range b.modules {
		moduleNames[i] = mod.Name()
	}
	slog.Info("initialized modules", "modules", moduleNames)

	return nil
}

// buildHandlers collects message handlers in module order.
func (b *Bot) buildHandlers() {
	for _, mod := range b.modules {
		b.handlers = append(b.handlers, mod.MessageHandlers()...)
	}
}

// dispatch passes a message to every handler. A failing handler does not stop the others.
func (b *Bot) dispatch(msg ChatMessage, r Responder) {
	ctx := b.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	for _, handler := range b.handlers {
		if err := handler(ctx, msg, r); err != nil {
			slog.Error("failed to handle message",
				"source", msg.Source,
				"username", msg.Username,
				"error", err,
			)
		}
	}
}

// Router builds the status router with module routes mounted.
func (b *Bot) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(statusRequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	for _, mod := range b.modules {
		if provider, ok := mod.(RouteProvider); ok {
			provider.Routes(r)
		}
	}

	return r
}

func (b *Bot) startStatusServer() {
	b.server = &http.Server{
		Addr:              b.config.StatusAddr,
		Handler:           b.Router(),
		ReadHeaderTimeout: statusRequestTimeout,
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		slog.Info("started status server", "addr", b.config.StatusAddr)
		if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server stopped", "error", err)
		}
	}()
}
