// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global log level and output. DEV gets a console writer,
// everything else logs JSON to stderr.
func Setup(env, level string) {
	SetupWithWriter(env, level, os.Stderr)
}

// SetupWithWriter is Setup with an explicit destination.
func SetupWithWriter(env, level string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	if env == "DEV" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	// zerolog.Ctx falls back to the global logger when a context carries none
	zerolog.DefaultContextLogger = &log.Logger
}
