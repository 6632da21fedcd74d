package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New creates a structured logger appropriate for the environment.
// Production writes JSON at info level, anything else writes
// human-readable console output at debug level.
func New(production bool, w io.Writer) zerolog.Logger {
	if production {
		return zerolog.New(w).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	}

	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	return zerolog.New(console).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
