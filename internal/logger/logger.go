// Package logger provides process-wide structured logging on top of log/slog.
// Init installs a JSON handler once at startup; the package-level functions are
// safe for concurrent use.
package logger

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	// Callers that skip Init still get a usable logger.
	current.Store(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

// Init installs the process logger. verbose enables debug-level output.
func Init(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	current.Store(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
}

// Get returns the current logger for injection into components.
func Get() *slog.Logger {
	return current.Load()
}

// Set replaces the process logger. Intended for tests capturing output.
func Set(l *slog.Logger) {
	current.Store(l)
}

func Debug(msg string, args ...any) {
	current.Load().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	current.Load().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	current.Load().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	current.Load().Error(msg, args...)
}

// Fatal logs at error level and exits the process.
func Fatal(msg string, args ...any) {
	current.Load().Error(msg, args...)
	os.Exit(1)
}
