// Package logging configures structured zerolog logging for the cache
// layer and its proxy.
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

// Component names passed to NewLogger.
const (
	ComponentCache        = "cache"
	ComponentRules        = "rules"
	ComponentDispatch     = "dispatch"
	ComponentInvalidation = "invalidation"
	ComponentOrigin       = "origin"
	ComponentServer       = "server"
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

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
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

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Per-request cache decisions
//   - Cache hit/miss with fingerprint and path
//   - Stored entries with TTL and tags
//   - Applied rules per step
//
// Info: Normal operation events
//   - Server startup/shutdown
//   - Tag flushes and their source
//   - Invalidation subscription established
//
// Warn: Conditions that don't prevent operation
//   - Malformed or failing invalidation messages
//   - Failed writes to a disconnected client
//
// Error: Conditions requiring attention
//   - Store failures surfaced as 500 responses
//   - Rule evaluation errors
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting package
//   - fingerprint: Cache entry identifier
//   - path: Request path
//   - step, rule: Rule engine position
//   - tag, tags, source: Invalidation details
//   - ttl: Cache entry lifetime
//   - status_code: HTTP status code
