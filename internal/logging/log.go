// Package logging configures the process-wide zerolog logger and exposes
// context-aware helpers so request-scoped fields follow a call chain.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. Development uses the console writer;
// everything else writes JSON to stdout.
func Setup(level, env string) *zerolog.Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(env, "development") {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return SetupWriter(w, level)
}

// SetupWriter installs the global logger writing to w. Used by Setup and by tests.
func SetupWriter(w io.Writer, level string) *zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	l := zerolog.New(w).With().Timestamp().Logger()
	log.Logger = l
	zerolog.DefaultContextLogger = &l
	return &l
}

// Logger returns the global logger.
func Logger() *zerolog.Logger {
	return &log.Logger
}

// Debug starts a new message with debug level.
func Debug(ctx context.Context) *zerolog.Event {
	return contextLogger(ctx).Debug()
}

// Info starts a new message with info level.
func Info(ctx context.Context) *zerolog.Event {
	return contextLogger(ctx).Info()
}

// Warn starts a new message with warn level.
func Warn(ctx context.Context) *zerolog.Event {
	return contextLogger(ctx).Warn()
}

// Error starts a new message with error level.
func Error(ctx context.Context) *zerolog.Event {
	return contextLogger(ctx).Error()
}

// WithContext returns a context whose logger carries the extra fields set via update.
func WithContext(ctx context.Context, update func(c zerolog.Context) zerolog.Context) context.Context {
	l := contextLogger(ctx).With().Logger()
	l.UpdateContext(update)
	return l.WithContext(ctx)
}

func contextLogger(ctx context.Context) *zerolog.Logger {
	global := Logger()
	if ctx == nil {
		return global
	}
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return global
	}
	return l
}
