// Package logger wraps github.com/charmbracelet/log behind a small facade so
// the rest of Nexus depends on a narrow interface rather than the charm API
// directly, following the shape of the teacher's internal/logger package.
package logger

import (
	"io"
	"os"
	"sort"

	charm "github.com/charmbracelet/log"
)

// Options configures a Logger at creation time.
type Options struct {
	Level         string
	HumanReadable bool
	Writer        io.Writer
	Component     string
}

// Logger is a structured, leveled logger with field attachment.
type Logger struct {
	base *charm.Logger
}

// New builds a Logger from Options. An empty Writer defaults to stderr.
func New(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	charmOpts := charm.Options{
		Level:           parseLevel(opts.Level),
		ReportTimestamp: true,
		Prefix:          opts.Component,
	}
	if !opts.HumanReadable {
		charmOpts.Formatter = charm.JSONFormatter
	}

	return &Logger{base: charm.NewWithOptions(w, charmOpts)}
}

func parseLevel(level string) charm.Level {
	lvl, err := charm.ParseLevel(level)
	if err != nil {
		return charm.InfoLevel
	}
	return lvl
}

// WithFields returns a derived Logger that always attaches the given fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil || l.base == nil || len(fields) == 0 {
		return l
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}

	return &Logger{base: l.base.With(args...)}
}

// Info writes an informational entry.
func (l *Logger) Info(msg string, args ...interface{}) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Info(msg, args...)
}

// Debug writes a debug-level entry.
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Debug(msg, args...)
}

// Warn writes a warning-level entry.
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Warn(msg, args...)
}

// Error writes an error-level entry, attaching err as a field when present.
func (l *Logger) Error(err error, msg string, args ...interface{}) {
	if l == nil || l.base == nil {
		return
	}
	if err != nil {
		args = append(args, "error", err)
	}
	l.base.Error(msg, args...)
}
