// Package log provides the structured logging interface used by every stage of
// a semiparametric regression run.
//
// The interface is slog-shaped (message plus key/value fields) and is backed by
// github.com/rs/zerolog. Console output prefixes each line with a status word
// (INFO:, WARN:, ERROR:, FATAL:) so that a run reads like a training log; the
// json format emits one object per line for machine consumption.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("dataset")
//	logger.Info("Loading input file",
//	    log.FilePathKey, "events_1.npz",
//	    log.TreeKey, "events",
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// The With method returns a child logger with pre-populated fields.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// An error value may appear in place of a key; it is logged under
	// the "error" key together with its stack trace.
	//
	// Example:
	//   logger.Error("Cannot open input file",
	//       err,
	//       log.FilePathKey, path,
	//   )
	Error(msg string, fields ...any)

	// Fatal logs a fatal-level message. It never exits the process: the caller
	// decides how to terminate after returning the error.
	Fatal(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
	LevelFatal Level = 12 // Conditions that end the run
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider defines an interface for creating and configuring loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific name/component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
