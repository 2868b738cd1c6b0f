// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
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
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// RunID tags every line of one dump run. Empty generates a new UUID.
	RunID string
}

// Setup configures the global zerolog logger and returns it along with the
// run id it carries.
func Setup(cfg Config) (zerolog.Logger, string) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	logger := zerolog.New(out).With().Timestamp().Str("run_id", runID).Logger()
	log.Logger = logger

	return logger, runID
}

// ValidateLevel reports whether level names a known log level.
func ValidateLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level %q (want debug, info, warn or error)", level)
	}
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
// Debug: Detailed information for debugging
//   - Every request (endpoint, URL, status, duration)
//   - Cache hit/miss per profile
//   - Page offsets as they are planned
//
// Info: Normal operation events
//   - Subject profile resolved
//   - Pagination and enrichment complete
//   - Rows written to the sink
//
// Warn: Warning conditions that don't prevent operation
//   - Following count drift between declared and fetched
//   - Cache errors (fallback to direct lookup)
//
// Error: Error conditions requiring attention
//   - Failed requests (the run aborts)
//   - Storage failures
//   - Configuration errors
//
// Context Fields:
//   - run_id: UUID of the dump run
//   - component: Emitting package (ig-client, paginator, enricher, sink, dump)
//   - endpoint: profile_lookup or following_page
//   - status_code: HTTP status code
//   - duration: Request duration
//   - error_class: client, server, rate_limit, network or decode
