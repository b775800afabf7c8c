// Package logging configures the zerolog logger used for migration progress
// and provides the elapsed-time timers reported after every step.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options control logger construction.
type Options struct {
	Level string
	// Force sets debug level regardless of Level.
	Force bool
	// JSON disables the console writer.
	JSON bool
	Out  io.Writer
}

// New builds a component logger. The level defaults to info.
func New(component string, opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := parseLevel(opts.Level)
	if opts.Force {
		level = zerolog.DebugLevel
	}

	return zerolog.New(out).Level(level).With().
		Timestamp().
		Str("component", component).
		Logger()
}

// FromEnv builds a logger using LOG_LEVEL and ENVIRONMENT.
func FromEnv(component string, force bool) zerolog.Logger {
	return New(component, Options{
		Level: os.Getenv("LOG_LEVEL"),
		Force: force,
		JSON:  os.Getenv("ENVIRONMENT") == "production",
	})
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
