// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/legis-client/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// Service is added to every event as "service" when set.
	Service string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// FromConfig derives the logger configuration from the application config.
// Development environments get console output regardless of LOG_PRETTY.
func FromConfig(cfg config.Config, service string) Config {
	c := DefaultConfig()
	c.Level = LogLevel(cfg.LogLevel)
	c.Pretty = cfg.LogPretty || cfg.Environment == "development"
	c.Service = service
	return c
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel converts a level name to a zerolog.Level. Unknown names fall
// back to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log level guidelines:
//
// Debug: cache hits and misses, conditional requests, rate limit updates
// while healthy, dashboard state transitions.
//
// Info: startup and shutdown, successful revalidation after retry, cache purges.
//
// Warn: throttling, retries, cache errors that fall back to the network,
// circuit breaker state changes.
//
// Error: exhausted retries, blocked requests, configuration errors.
//
// Common fields:
//   - component: legis-client, dashboard, search, proxy, cli
//   - endpoint: metric label of the API route (federal, state/{id}, search)
//   - status_code, error_class, request_id
//   - remaining, reset_at: rate limit window
//   - key, etag: cache entry
//   - view, page, query: dashboard state
