package shared

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	l, err := NewLogger("info", false)
	if err != nil {
		l = zap.NewNop()
	}
	SetLogger(l)
}

// NewLogger builds the console logger used by the runtime.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// SetLogger replaces the process-wide logger. A host embedding the runtime
// uses this to route output into its own console.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(l.Sugar())
}

// Logger returns the process-wide logger.
func Logger() *zap.Logger {
	return current.Load().Desugar()
}

// Tagged returns the logger for a subsystem tag.
func Tagged(tag string) *zap.SugaredLogger {
	return current.Load().Named(tag)
}

// LogDebug logs a debug message under tag
func LogDebug(tag, format string, args ...interface{}) {
	Tagged(tag).Debugf(format, args...)
}

// LogInfo logs an info message under tag
func LogInfo(tag, format string, args ...interface{}) {
	Tagged(tag).Infof(format, args...)
}

// LogWarning logs a warning message under tag
func LogWarning(tag, format string, args ...interface{}) {
	Tagged(tag).Warnf(format, args...)
}

// LogError logs an error message under tag
func LogError(tag, format string, args ...interface{}) {
	Tagged(tag).Errorf(format, args...)
}

// DebugLog writes an untagged debug trace.
func DebugLog(format string, args ...interface{}) {
	current.Load().Debugf(format, args...)
}
