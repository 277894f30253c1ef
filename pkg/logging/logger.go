// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

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
	Level LogLevel `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool `yaml:"pretty"`

	// Output defaults to os.Stderr.
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. Component
// loggers derived afterwards with NewLogger inherit its output.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	if err != nil {
		logger.Warn().Err(err).Msg("Falling back to info level")
	}
	return logger
}

// ParseLevel converts a LogLevel to a zerolog.Level. The empty level is info.
func ParseLevel(level LogLevel) (zerolog.Level, error) {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithCategory tags a logger with an error category.
func WithCategory(logger zerolog.Logger, category string) zerolog.Logger {
	return logger.With().Str("category", category).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, tier)
//   - Request flow (method, URL, status, body sizes)
//   - Internal state changes
//
// Info: Normal operation events
//   - Connectivity restored
//   - Cache sweeps and clears
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Recovery attempts
//   - Cache tier errors (fail-open, treated as miss)
//   - Connectivity lost
//   - Rate limit back-off active
//
// Error: Error conditions requiring attention
//   - Recovery exhausted
//   - Non-recoverable request failures
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting package (cache, client, recovery, menu, ...)
//   - category: Error category (network, authentication, data, ai, general)
//   - kind: Error sub-kind (e.g. network.timeout)
//   - severity: Error severity (low, medium, high, critical)
//   - method, url, status_code: Request metadata
//   - duration: Request duration
//   - key, tier: Cache key and tier
//   - attempt, max_attempts: Recovery progress
