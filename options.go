package validity

import "log/slog"

// Option configures a Projection
type Option func(*config)

// config holds all configuration options
type config struct {
	id            string
	logger        *slog.Logger
	observability Observability
	panicHandler  PanicHandler
}

// defaultConfig returns the default configuration
func defaultConfig() *config {
	return &config{
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithID sets the projection ID used in logs and telemetry.
// Default is a random UUID.
func WithID(id string) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithLogger sets the logger for the projection
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObservability enables lifecycle and emission callbacks
func WithObservability(obs Observability) Option {
	return func(c *config) {
		c.observability = obs
	}
}

// WithHandlerPanicHandler sets a function to be called when a subscriber of
// Changes, WhenIsValid or WhenMessage panics. Without one, panics are logged.
func WithHandlerPanicHandler(handler PanicHandler) Option {
	return func(c *config) {
		c.panicHandler = handler
	}
}
