package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns the process logger. Cloud Logging reads the level from
// "severity"; only env "development" gets the console writer at debug level.
func New(env, component string) zerolog.Logger {
	return newWithWriter(os.Stderr, env, component)
}

func newWithWriter(w io.Writer, env, component string) zerolog.Logger {
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).
			With().Timestamp().Str("component", component).Logger().
			Level(zerolog.DebugLevel)
	}
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger().Level(zerolog.InfoLevel)
}
