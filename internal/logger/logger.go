// Package logger provides the process-wide logger for conduit.
//
// The CLI logs human-oriented progress to stderr; debug output is enabled
// with CONDUIT_DEBUG=1. Secrets must never reach the logger unredacted.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// DebugEnvVar enables debug-level logging when set to a truthy value.
const DebugEnvVar = "CONDUIT_DEBUG"

// singleton is the package-level logger. Accessed atomically so it is safe
// to swap from tests while other goroutines log.
var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(newDefault(os.Stderr))
}

func newDefault(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv(DebugEnvVar) {
	case "1", "true", "yes":
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Initialize re-reads the environment and installs a fresh logger writing
// to stderr. Call once from main before any command runs.
func Initialize() {
	singleton.Store(newDefault(os.Stderr))
}

// Get returns the underlying *slog.Logger for injection into structs.
func Get() *slog.Logger {
	return singleton.Load()
}

// Set replaces the singleton logger. Intended for tests capturing output.
func Set(l *slog.Logger) {
	singleton.Store(l)
}

// Debug logs a message at debug level.
func Debug(msg string) {
	singleton.Load().Debug(msg)
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) {
	singleton.Load().Debug(fmt.Sprintf(format, args...))
}

// Info logs a message at info level.
func Info(msg string) {
	singleton.Load().Info(msg)
}

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) {
	singleton.Load().Info(fmt.Sprintf(format, args...))
}

// Warn logs a message at warning level.
func Warn(msg string) {
	singleton.Load().Warn(msg)
}

// Warnf logs a formatted message at warning level.
func Warnf(format string, args ...any) {
	singleton.Load().Warn(fmt.Sprintf(format, args...))
}

// Error logs a message at error level.
func Error(msg string) {
	singleton.Load().Error(msg)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) {
	singleton.Load().Error(fmt.Sprintf(format, args...))
}

// Redact shortens a secret for log output, keeping only the first four
// characters.
func Redact(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
