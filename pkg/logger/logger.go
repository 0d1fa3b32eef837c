// Package logger builds the zerolog instances shared by the engine,
// the workers, and the CLI tools.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "kginvest"

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // console writer for interactive runs
}

// New creates the root structured logger. Every line carries the
// service name so mixed log streams stay attributable.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// For returns a child logger tagged with a component name, the field
// convention the workers and the HTTP server filter on.
func For(parent zerolog.Logger, component string) zerolog.Logger {
	return parent.With().Str("component", component).Logger()
}

// SetGlobalLogger routes the zerolog package-level logger through l
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
