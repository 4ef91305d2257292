package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Development builds get a
// console writer at debug level so technical error details are visible;
// other environments emit JSON at info.
func Setup(env, level string) {
	SetupWriter(os.Stderr, env, level)
}

func SetupWriter(w io.Writer, env, level string) {
	dev := strings.EqualFold(env, "DEV")

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(ParseLevel(level, dev))

	if dev {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel maps LOG_LEVEL onto a zerolog level, falling back to debug in
// development and info elsewhere.
func ParseLevel(level string, dev bool) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	}
	if dev {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
