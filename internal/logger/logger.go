package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup initializes the global zerolog logger.
//   - level: log level string (trace, debug, info, warn, error, fatal, panic)
//   - format: "json" for production, "pretty" for human-readable dev output
//
// Caller annotations are only attached at debug and below; at info the hot
// paths (autosave ticks, timekeeper ticks) log without the lookup cost.
func Setup(level, format string) zerolog.Logger {
	var writer io.Writer

	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	} else {
		writer = os.Stdout
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	builder := zerolog.New(writer).
		With().
		Timestamp().
		Str("service", "session-engine")

	if lvl <= zerolog.DebugLevel {
		builder = builder.Caller()
	}

	return builder.Logger()
}
