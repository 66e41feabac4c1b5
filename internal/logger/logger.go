// Package logger provides the shared application logger.
//
// It is a thin wrapper around a zap sugared logger exposing package-level
// helpers so callers do not need to thread a logger through every
// constructor. Call Initialize once at startup; until then the helpers
// write through a default production logger.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log *zap.SugaredLogger = newSugared(false)
)

func newSugared(debug bool) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Building a production config only fails on invalid options,
		// which would be a programming error here.
		panic(err)
	}
	return l.Sugar()
}

// Initialize configures the global logger. Debug mode lowers the level
// to Debug and is intended for local development.
func Initialize(debug bool) {
	mu.Lock()
	defer mu.Unlock()
	log = newSugared(debug)
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug logs a message at debug level.
func Debug(args ...any) { get().Debug(args...) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { get().Debugf(format, args...) }

// Info logs a message at info level.
func Info(args ...any) { get().Info(args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { get().Infof(format, args...) }

// Warn logs a message at warn level.
func Warn(args ...any) { get().Warn(args...) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { get().Warnf(format, args...) }

// Error logs a message at error level.
func Error(args ...any) { get().Error(args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { get().Errorf(format, args...) }

// Fatalf logs a formatted message at fatal level and exits.
func Fatalf(format string, args ...any) { get().Fatalf(format, args...) }
