package bot

import "github.com/go-chi/chi/v5"

// ModuleDependencies provides dependencies that modules may need during initialization.
type ModuleDependencies struct {
	// Announcer posts to the chat the bot is reading.
	Announcer Announcer
}

// Module defines the interface that all bot modules must implement.
type Module interface {
	// Name returns the unique identifier for this module.
	Name() string

	// MessageHandlers returns the handlers chat messages are passed to, in order.
	MessageHandlers() []MessageHandler

	// Init initializes the module with the provided dependencies.
	Init(deps ModuleDependencies) error

	// Shutdown gracefully shuts down the module.
	Shutdown() error
}

// ConfigurableModule is an optional interface for modules that need configuration.
// Modules implementing this interface will have LoadConfig called before Init.
type ConfigurableModule interface {
	// LoadConfig loads and validates module-specific configuration.
	// Should return an error if required configuration is missing or invalid.
	LoadConfig() error
}

// RouteProvider is an optional interface for modules that expose HTTP routes
// on the status server.
type RouteProvider interface {
	Routes(r chi.Router)
}
