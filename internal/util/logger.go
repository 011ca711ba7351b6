package util

import (
	"io"
	"log/slog"
	"os"
	"time"

	stdlog "log"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

type Logger = zerolog.Logger

// LogLevel represents available log levels
type LogLevel = int

// Log levels
const (
	TraceLevel LogLevel = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// InitializeLogger sets up the global logger writing to stdout
func InitializeLogger(level LogLevel) {
	InitializeLoggerTo(level, os.Stdout)
}

// InitializeLoggerTo sets up the global logger with the specified level and
// a console writer on out
func InitializeLoggerTo(level LogLevel, out io.Writer) {
	// Set time format to ISO8601
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ZerologLevel(level))

	// Create a console writer with nice formatting for terminal output
	output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}

	ctx := zerolog.New(output).With().Timestamp()
	if level == TraceLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	log.Debug().Msg("Logger initialized")
}

// ZerologLevel converts a LogLevel into its zerolog equivalent.
// Unknown values fall back to info.
func ZerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case TraceLevel:
		return zerolog.TraceLevel
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns a configured logger for a specific component
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewSlogHandler returns a slog.Handler that writes through the global zerolog logger
func NewSlogHandler(component string, lvl slog.Level) slog.Handler {
	opt := slogzerolog.Option{Level: lvl}

	zlog := log.With().Str("component", component).Logger()
	opt.Logger = &zlog

	return opt.NewZerologHandler()
}

// NewLogLogger returns a stdlog.Logger routed to zerolog at the current
// global level. Used for libraries (go-fuse) that only accept *log.Logger.
func NewLogLogger(component string) *stdlog.Logger {
	var slvl slog.Level
	switch zerolog.GlobalLevel() {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		slvl = slog.LevelDebug
	case zerolog.WarnLevel:
		slvl = slog.LevelWarn
	case zerolog.ErrorLevel:
		slvl = slog.LevelError
	default:
		slvl = slog.LevelInfo
	}
	handler := NewSlogHandler(component, slvl)

	return slog.NewLogLogger(handler, slvl)
}
