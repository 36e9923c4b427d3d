package infra

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so the rest of the codebase depends on one
// logging surface.
type Logger = zerolog.Logger

// NewLogger constructs the process logger. Development gets a human-readable
// console writer at debug level; everything else emits JSON at info. LOG_LEVEL
// overrides the level in either mode.
func NewLogger(appEnv string) zerolog.Logger {
	dev := appEnv == "development"

	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}

	var out = zerolog.New(os.Stdout)
	if dev {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return out.
		Level(level).
		With().
		Timestamp().
		Str("service", "scenestudio").
		Logger()
}
