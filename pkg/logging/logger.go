// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a LogLevel to a zerolog.Level. Unknown values map to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger derived from the global one with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForListing returns a component logger that also carries the listing name.
func ForListing(component, listing string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("listing", listing).
		Logger()
}

// Log Level Guidelines:
//
// Debug: paging internals
//   - Load state transitions (idle, loading, success, error)
//   - Data source creation and retirement (generation)
//   - Results discarded from retired data sources
//   - Store reads and writes (items, operation)
//
// Info: lifecycle events
//   - Listing created and closed
//   - Refresh requested
//   - Server startup/shutdown
//
// Warn: failures that surface as an Error load state
//   - Page fetch failures
//   - Store write failures
//   - Store read failures after a successful write
//
// Error: conditions requiring attention
//   - Panicking executor tasks
//   - Configuration errors
//
// Context Fields:
//   - component: pagination, store, httpfetch, executor, server
//   - listing: listing name
//   - page: page identifier
//   - generation: data source generation
//   - kind: initial or append
//   - items: number of items in a page or view
