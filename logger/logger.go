// SPDX-License-Identifier: EPL-2.0

// Package logger defines the logging port used across the pipeline and its
// console and no-op implementations.
package logger

// Level represents the severity level of a log message.
type Level int

const (
	// LevelDebug is used by pipeline components for per-buffer and per-state details.
	LevelDebug Level = iota
	// LevelInfo is used by the playback driver.
	LevelInfo
	// LevelWarn is for recoverable problems such as underruns.
	LevelWarn
	// LevelError is for problems that stop playback.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level name, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "quiet":
		return LevelQuiet
	default:
		return LevelInfo
	}
}

// Logger abstracts logging. msg is a message key that may be translated; args
// are format arguments applied after translation.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with component.
	WithComponent(component string) Logger
}

// OrNoop returns l, or a NoopLogger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NewNoop()
	}
	return l
}
