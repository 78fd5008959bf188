// Package logger provides the Logger collaborator: a thin, enable-able
// wrapper around logrus that the rest of this module depends on instead of
// the global logrus instance, following the pattern of passing a single
// explicit collaborator rather than reintroducing package-level state.
package logger

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Sink is the narrow interface most components need; Logger satisfies it.
type Sink interface {
	Log(format string, args ...any)
}

// Logger wraps a *logrus.Logger with an enable switch and file redirection,
// matching the out-of-scope "Logger" collaborator described in §6.
type Logger struct {
	mu      sync.Mutex
	backend *logrus.Logger
	enabled bool
	file    *os.File
}

// New returns a Logger writing to stderr, enabled by default.
func New() *Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{backend: l, enabled: true}
}

// Log writes a formatted line when enabled; it is a no-op otherwise.
func (lg *Logger) Log(format string, args ...any) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if !lg.enabled {
		return
	}
	lg.backend.Info(fmt.Sprintf(format, args...))
}

// Debug is used for wire-level detail, gated the same as Log but intended
// for -debug output; callers decide whether to call it at all.
func (lg *Logger) Debug(format string, args ...any) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if !lg.enabled {
		return
	}
	lg.backend.Debug(fmt.Sprintf(format, args...))
}

// Enable turns logging on or off without discarding the underlying file
// handle, so a later Enable(true) resumes writing to the same destination.
func (lg *Logger) Enable(on bool) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.enabled = on
}

// SetDebug raises or lowers the backend's level; used for -debug.
func (lg *Logger) SetDebug(on bool) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if on {
		lg.backend.SetLevel(logrus.DebugLevel)
	} else {
		lg.backend.SetLevel(logrus.InfoLevel)
	}
}

// RedirectToFile reopens the log destination at path (append, create if
// missing), closing any previously redirected file.
func (lg *Logger) RedirectToFile(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("redirect log to %s: %w", path, err)
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.file != nil {
		lg.file.Close()
	}
	lg.file = f
	lg.backend.SetOutput(f)
	return nil
}

// Close releases any redirected file handle.
func (lg *Logger) Close() error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.file != nil {
		err := lg.file.Close()
		lg.file = nil
		return err
	}
	return nil
}
