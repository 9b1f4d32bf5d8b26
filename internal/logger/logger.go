// Package logger holds the process-wide structured logger.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	// level is shared by every handler Configure builds, so changing it needs no new logger.
	level   slog.LevelVar
	current atomic.Pointer[slog.Logger]
)

func init() {
	current.Store(newLogger(os.Stdout))
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level}))
}

type Options struct {
	Level string
	File  string
	// Output replaces stdout; used by tests.
	Output io.Writer
}

// Configure swaps the package logger. Invalid values keep the current settings and are
// reported together in the returned error. Safe to call while other goroutines log.
func Configure(opts Options) error {
	var levelErr error
	if strings.TrimSpace(opts.Level) != "" {
		var parsed LogLevel
		if parsed, levelErr = ParseLogLevel(opts.Level); levelErr == nil {
			level.Set(slogLevel(parsed))
		}
	}

	writer := io.Writer(os.Stdout)
	if opts.Output != nil {
		writer = opts.Output
	}
	fileWriter, fileErr := openLogFile(opts.File)
	if fileWriter != nil {
		writer = io.MultiWriter(writer, fileWriter)
	}
	current.Store(newLogger(writer))

	return errors.Join(levelErr, fileErr)
}

func openLogFile(path string) (io.Writer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func ParseLogLevel(value string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("invalid log level %q", value)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// L returns the current logger.
func L() *slog.Logger {
	return current.Load()
}

// Enabled reports whether messages at l are currently written.
func Enabled(l LogLevel) bool {
	return level.Level() <= slogLevel(l)
}

// Log writes msg at an arbitrary slog level, for adapters such as the gorm logger.
func Log(ctx context.Context, l slog.Level, msg string, args ...any) {
	L().Log(ctx, l, msg, args...)
}

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }
