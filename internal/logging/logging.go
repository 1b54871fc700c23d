package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel LogLevel
	base         zerolog.Logger
	initOnce     sync.Once
)

// ParseLevel converts a level name to a LogLevel. Unknown names map to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func levelFromEnv() LogLevel {
	switch strings.ToLower(os.Getenv("DEBUG")) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// newWriter picks a console writer for interactive terminals and JSON otherwise.
// LOG_FORMAT=json|console overrides the detection.
func newWriter(out *os.File) io.Writer {
	format := strings.ToLower(os.Getenv("LOG_FORMAT"))
	if format == "json" {
		return out
	}
	if format == "console" || term.IsTerminal(int(out.Fd())) {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return out
}

func ensureInit() {
	initOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		currentLevel = levelFromEnv()
		base = zerolog.New(newWriter(os.Stderr)).
			Level(currentLevel.zerolog()).
			With().Timestamp().Str("app", "media-lite").Logger()
	})
}

// SetOutput redirects all log output to w using the JSON encoder.
// Intended for tests and for tools that want machine-readable logs.
func SetOutput(w io.Writer) {
	ensureInit()
	mu.Lock()
	defer mu.Unlock()
	base = base.Output(w)
}

// SetLevel overrides the level read from the environment.
func SetLevel(l LogLevel) {
	ensureInit()
	mu.Lock()
	defer mu.Unlock()
	currentLevel = l
	base = base.Level(l.zerolog())
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	ensureInit()
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Logger returns the process-wide zerolog logger.
func Logger() zerolog.Logger {
	ensureInit()
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// With returns a child logger tagged with a component name.
func With(component string) zerolog.Logger {
	l := Logger()
	return l.With().Str("component", component).Logger()
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	l := Logger()
	l.Debug().Msgf(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	l := Logger()
	l.Info().Msgf(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	l := Logger()
	l.Warn().Msgf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	l := Logger()
	l.Error().Msgf(format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	l := Logger()
	l.Fatal().Msgf(format, args...)
}

// Printf logs at info level regardless of the configured level.
func Printf(format string, args ...interface{}) {
	l := Logger()
	l.Log().Msgf(format, args...)
}

// Println logs its arguments at info level regardless of the configured level.
func Println(args ...interface{}) {
	l := Logger()
	l.Log().Msg(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
