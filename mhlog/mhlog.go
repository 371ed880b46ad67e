// Package mhlog provides the structured logging used by the sampler: a
// thin wrapper over zerolog in the style of the pack's
// chaos-utils reporting package, generalized from a chaos-engineering
// CLI's log levels/format down to the handful of events this engine
// ever emits (state transitions, adaptation adjustments, run completion).
package mhlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level is one of zerolog's levels, re-exported so callers of this
// package never need to import zerolog directly.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	Disabled   = zerolog.Disabled
)

// Logger is the engine's structured logger.
type Logger struct {
	z zerolog.Logger
}

// New creates a Logger writing to w at the given level. Passing a nil w
// defaults to os.Stderr; passing Disabled silences all output, which is
// the sampler's default so a library user gets no output unless they
// opt in via sampler.WithLogger.
func New(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	z := zerolog.New(w).With().Timestamp().Logger().Level(level)
	return &Logger{z: z}
}

// Nop returns a Logger that discards everything, used as the sampler's
// zero-value default.
func Nop() *Logger {
	return New(io.Discard, Disabled)
}

// Debug logs a debug-level event with the given fields (key, value, key,
// value, ...). An odd field count logs a malformed-fields marker instead
// of panicking, matching the defensive style of the pack's chaos-utils
// logger.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.emit(l.z.Debug(), msg, fields) }

// Info logs an info-level event.
func (l *Logger) Info(msg string, fields ...interface{}) { l.emit(l.z.Info(), msg, fields) }

// Warn logs a warn-level event.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.emit(l.z.Warn(), msg, fields) }

// Error logs an error-level event.
func (l *Logger) Error(msg string, fields ...interface{}) { l.emit(l.z.Error(), msg, fields) }

// With returns a child Logger carrying an additional field on every
// subsequent event.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{z: l.z.With().Interface(key, value).Logger()}
}

func (l *Logger) emit(ev *zerolog.Event, msg string, fields []interface{}) {
	if len(fields)%2 != 0 {
		ev.Str("log_error", "odd number of fields").Msg(msg)
		return
	}
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			ev = ev.Interface("bad_key", fields[i])
			continue
		}
		ev = ev.Interface(key, fields[i+1])
	}
	ev.Msg(msg)
}
