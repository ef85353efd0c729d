// Package nativehook is the public SDK for extension modules: hook point
// access, schema-backed object fields and logging.
package nativehook

import (
	"go.uber.org/zap"

	"github.com/corrreia/nativehook/internal/shared"
)

// Logger provides structured logging for modules
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// logger implements Logger
type logger struct {
	tag    string
	fields []zap.Field
}

// GetLogger returns a logger for the given module name
func GetLogger(module string) Logger {
	return &logger{tag: module}
}

func (l *logger) sugar() *zap.SugaredLogger {
	s := shared.Tagged(l.tag)
	if len(l.fields) > 0 {
		s = s.Desugar().With(l.fields...).Sugar()
	}
	return s
}

func (l *logger) Debug(format string, args ...interface{}) {
	l.sugar().Debugf(format, args...)
}

func (l *logger) Info(format string, args ...interface{}) {
	l.sugar().Infof(format, args...)
}

func (l *logger) Warning(format string, args ...interface{}) {
	l.sugar().Warnf(format, args...)
}

func (l *logger) Error(format string, args ...interface{}) {
	l.sugar().Errorf(format, args...)
}

func (l *logger) WithField(key string, value interface{}) Logger {
	fields := make([]zap.Field, 0, len(l.fields)+1)
	fields = append(fields, l.fields...)
	return &logger{tag: l.tag, fields: append(fields, zap.Any(key, value))}
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	out := make([]zap.Field, 0, len(l.fields)+len(fields))
	out = append(out, l.fields...)
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return &logger{tag: l.tag, fields: out}
}

// Package-level logging functions

// Debug logs a debug message
func Debug(tag, format string, args ...interface{}) {
	shared.LogDebug(tag, format, args...)
}

// Info logs an info message
func Info(tag, format string, args ...interface{}) {
	shared.LogInfo(tag, format, args...)
}

// Warning logs a warning message
func Warning(tag, format string, args ...interface{}) {
	shared.LogWarning(tag, format, args...)
}

// Error logs an error message
func Error(tag, format string, args ...interface{}) {
	shared.LogError(tag, format, args...)
}
