// Package telemetry provides structured logging for the persistence layer.
package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Logger wraps log/slog with the conventions used across the store: keyval
// logging, a verbosity switch, and an optional file sink. A nil Logger is
// safe to use (all methods are no-ops) so stores can be constructed
// without observability wired in.
type Logger struct {
	inner *slog.Logger
	level slog.Level
	file  *os.File
}

// NewLogger creates a logger writing to stderr. Verbose enables debug level.
func NewLogger(verbose bool) *Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{inner: slog.New(handler), level: level}
}

// WithFile switches output to a multi-writer over stderr and the given file.
func (l *Logger) WithFile(path string) error {
	if l == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l.file = file
	multi := io.MultiWriter(os.Stderr, file)
	l.inner = slog.New(slog.NewTextHandler(multi, &slog.HandlerOptions{Level: l.level}))
	return nil
}

// With returns a logger carrying additional key-value fields.
func (l *Logger) With(keyvals ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{inner: l.inner.With(keyvals...), level: l.level, file: l.file}
}

// Close releases the file sink, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) Debug(msg string, keyvals ...any) {
	if l != nil {
		l.inner.Debug(msg, keyvals...)
	}
}

func (l *Logger) Info(msg string, keyvals ...any) {
	if l != nil {
		l.inner.Info(msg, keyvals...)
	}
}

func (l *Logger) Warn(msg string, keyvals ...any) {
	if l != nil {
		l.inner.Warn(msg, keyvals...)
	}
}

func (l *Logger) Error(msg string, keyvals ...any) {
	if l != nil {
		l.inner.Error(msg, keyvals...)
	}
}
