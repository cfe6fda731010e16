// Package applog provides the bracketed-tag logger used throughout a
// session (e.g. "[heartbeat] ...", "[reconnect] ...").
package applog

import (
	"io"
	"log"
	"os"
)

// Logger prefixes every line with a fixed "[tag]" marker.
type Logger struct {
	tag    string
	logger *log.Logger
}

// New builds a Logger writing to os.Stderr with the standard date/time
// prefix, tagged with tag.
func New(tag string) *Logger {
	return NewWithOutput(tag, os.Stderr)
}

// NewWithOutput builds a Logger writing to w, for tests and for redirecting
// a session's diagnostics to the audit directory.
func NewWithOutput(tag string, w io.Writer) *Logger {
	return &Logger{tag: tag, logger: log.New(w, "", log.LstdFlags)}
}

// Debugf logs a debug-level line tagged "[<tag> debug]".
func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Printf("[%s debug] "+format, append([]any{l.tag}, args...)...)
}

// Infof logs a line tagged "[<tag>]".
func (l *Logger) Infof(format string, args ...any) {
	l.logger.Printf("[%s] "+format, append([]any{l.tag}, args...)...)
}

// Warnf logs a line tagged "[<tag> warn]".
func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Printf("[%s warn] "+format, append([]any{l.tag}, args...)...)
}

// Errorf logs a line tagged "[<tag> error]".
func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Printf("[%s error] "+format, append([]any{l.tag}, args...)...)
}

// With returns a Logger scoped to a sub-tag, e.g. New("myr").With("tunnel")
// logs as "[myr tunnel] ...".
func (l *Logger) With(subtag string) *Logger {
	return &Logger{tag: l.tag + " " + subtag, logger: l.logger}
}
