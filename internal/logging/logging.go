// Package logging provides the daemon's structured logger, grounded on
// cuemby-warren's pkg/log (global zerolog.Logger, component child
// loggers, level parsing from a string).
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance used by every component that
// hasn't been handed a component-scoped child logger.
var Logger zerolog.Logger

// Config controls how Init configures the global logger.
type Config struct {
	Level      string // debug|info|warn|error
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger. Safe to call once at process
// start, typically from cmd/syswatchd before any component runs.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagged with the given component
// name, e.g. "scheduler", "writer", "rpc".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

func init() {
	// Sensible default so packages that log before cmd/syswatchd calls
	// Init (e.g. in tests) still produce readable output.
	Init(Config{Level: "info"})
}
