package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. Development gets a console writer and
// debug level unless LOG_LEVEL says otherwise.
func New(environment string, level ...string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if environment == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(resolveLevel(environment, level...)).
		With().
		Timestamp().
		Str("service", "koshtorys").
		Logger()
}

func resolveLevel(environment string, level ...string) zerolog.Level {
	if len(level) > 0 {
		raw := strings.TrimSpace(level[0])
		if raw != "" {
			if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
				return parsed
			}
		}
	}
	if environment == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
