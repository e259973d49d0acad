// Package log provides the default LoggerProvider implementation.
//
// This file contains the zerolog-backed provider that backs the package-level
// GetLogger and GetLoggerWithName functions. Library code obtains loggers
// through these functions so that applications can swap the backend with
// SetLoggerProvider (for example, to a TestLoggerProvider in tests) without
// touching estimator code.

package log

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// zerologLogger adapts a zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl    zerolog.Logger
	level Level
}

// newZerologLogger creates a JSON logger writing to stderr at the given level.
func newZerologLogger(level Level) *zerologLogger {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &zerologLogger{zl: zl, level: level}
}

// toZerologLevel maps a slog-compatible Level onto zerolog's levels.
func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Debug implements Logger.Debug.
func (z *zerologLogger) Debug(msg string, fields ...any) {
	z.emit(z.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (z *zerologLogger) Info(msg string, fields ...any) {
	z.emit(z.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (z *zerologLogger) Warn(msg string, fields ...any) {
	z.emit(z.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (z *zerologLogger) Error(msg string, fields ...any) {
	z.emit(z.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (z *zerologLogger) With(fields ...any) Logger {
	ctx := z.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			ctx = ctx.AnErr(key, err)
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{zl: ctx.Logger(), level: z.level}
}

// Enabled implements Logger.Enabled.
func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= z.level
}

// emit writes one event with the variadic key-value fields attached.
// A bare leading error (odd field count) is attached under the "error" key,
// so callers may write logger.Error("fit failed", err, "bag", 3).
func (z *zerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			e = e.AnErr(ErrAttrKey, err)
			fields = fields[1:]
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	e.Msg(msg)
}

// zerologProvider is the default LoggerProvider backed by zerolog.
type zerologProvider struct {
	mu    sync.RWMutex
	level Level
}

func newZerologProvider(level Level) *zerologProvider {
	return &zerologProvider{level: level}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *zerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return newZerologLogger(p.level)
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

var (
	providerMu      sync.RWMutex
	defaultProvider LoggerProvider = newZerologProvider(LevelInfo)
)

// SetLoggerProvider replaces the package-level provider used by GetLogger
// and GetLoggerWithName. Passing nil restores the default zerolog provider.
func SetLoggerProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	if p == nil {
		p = newZerologProvider(LevelInfo)
	}
	defaultProvider = p
}

// GetLogger returns the default logger from the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with a component name.
// Estimators use their package-qualified name, e.g. "ensemble.bagging".
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return defaultProvider.GetLoggerWithName(name)
}
