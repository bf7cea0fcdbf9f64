// Package logging configures the process-wide slog JSON sink once at cold
// start and adapts it to types.Logger for injection into components.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"servicehealth/internal/types"
)

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values fall back
// to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a JSON logger writing to w (stdout when nil) tagged with the
// service name.
func New(w io.Writer, level, service string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	logger := slog.New(handler)
	if service != "" {
		logger = logger.With("service", service)
	}
	return logger
}

// slogAdapter wraps *slog.Logger to implement types.Logger. slog.Logger's
// With returns *slog.Logger, so it cannot satisfy the interface directly.
type slogAdapter struct {
	logger *slog.Logger
}

// Adapt wraps logger as a types.Logger.
func Adapt(logger *slog.Logger) types.Logger {
	return &slogAdapter{logger: logger}
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// Slog returns the underlying *slog.Logger of an adapted logger, or a
// discard logger for other implementations.
func Slog(l types.Logger) *slog.Logger {
	if a, ok := l.(*slogAdapter); ok {
		return a.logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ types.Logger = (*slogAdapter)(nil)
