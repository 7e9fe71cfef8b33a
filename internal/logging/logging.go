// Package logging configures zerolog for the process.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Setup configures zerolog with the given level ("debug", "info", ...).
// Console output for humans when stdout is a terminal is left to the
// caller via pretty; JSON otherwise.
func Setup(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.With().Timestamp().Logger().Level(lvl)
}
