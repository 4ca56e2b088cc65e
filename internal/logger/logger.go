package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by the logger
type ContextKey string

const (
	// LoggerKey is the context key for the logger instance
	LoggerKey ContextKey = "logger"
)

// Output formats accepted by NewWithConfig.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New creates a console logger at info level.
func New() zerolog.Logger {
	return NewWithConfig(os.Stdout, "info", FormatConsole)
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// NewWithConfig creates a logger with the given level and output format.
// Unknown levels fall back to info.
func NewWithConfig(w io.Writer, level, format string) zerolog.Logger {
	out := w
	if strings.EqualFold(format, FormatConsole) {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).
		Level(ParseLevel(level)).
		With().Timestamp().Caller().Logger()
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from the context or returns a default logger
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return New()
}

// ForSubject returns a context whose logger carries the subject and cycle fields.
func ForSubject(ctx context.Context, subjectID, cycle string) (context.Context, zerolog.Logger) {
	log := FromContext(ctx).With().
		Str("subject_id", subjectID).
		Str("cycle", cycle).
		Logger()
	return WithContext(ctx, log), log
}

// WithFields adds structured fields to a logger
func WithFields(logger zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	ctx := logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}
