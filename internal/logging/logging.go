// Package logging sets up the process-wide zerolog logger and hands out
// per-component sub-loggers.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It discards everything until Init
// is called, which keeps package tests quiet.
var Logger = zerolog.New(io.Discard)

// Init configures the global logger. Level is parsed with
// zerolog.ParseLevel and falls back to info. Format "json" writes one JSON
// object per line; anything else writes human-readable console output.
func Init(level, format, service string) zerolog.Logger {
	return InitWriter(os.Stderr, level, format, service)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level, format, service string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true

	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}

	Logger = zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Logger()
	return Logger
}

// For returns a sub-logger tagged with the given component name.
func For(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
