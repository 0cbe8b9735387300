// Package logger provides the leveled logging interface used by pstop components.
//
// The dashboard owns the terminal while it runs, so log output normally goes
// to a file (--log-file) rather than stderr. The agent logs to stderr.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Logger is the logging interface handed to every pstop component.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Level is a minimum severity. Messages below the level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// DebugEnv turns on debug output for loggers built with FromEnv.
const DebugEnv = "PSTOP_DEBUG"

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
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name ("debug", "info", "warn", "error").
// Unknown names fall back to info.
func ParseLevel(s string) Level {
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

// writerLogger writes "<time> <prefix> <LEVEL> message" lines to an io.Writer.
type writerLogger struct {
	out    *log.Logger
	prefix string
	level  Level
}

// New creates a logger writing to w. The prefix (e.g. "[agent]") is put in
// front of every message.
func New(w io.Writer, prefix string, level Level) Logger {
	return &writerLogger{
		out:    log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		prefix: prefix,
		level:  level,
	}
}

// FromEnv creates a stderr logger at info level, or debug level when
// PSTOP_DEBUG is set.
func FromEnv(prefix string) Logger {
	level := LevelInfo
	if os.Getenv(DebugEnv) != "" {
		level = LevelDebug
	}
	return New(os.Stderr, prefix, level)
}

// OpenFile creates a logger appending to path. The returned closer must be
// called on shutdown.
func OpenFile(path, prefix string, level Level) (Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return New(f, prefix, level), f, nil
}

func (l *writerLogger) logf(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		l.out.Printf("%s %s %s", l.prefix, level, msg)
		return
	}
	l.out.Printf("%s %s", level, msg)
}

func (l *writerLogger) Debug(format string, args ...interface{}) { l.logf(LevelDebug, format, args...) }
func (l *writerLogger) Info(format string, args ...interface{})  { l.logf(LevelInfo, format, args...) }
func (l *writerLogger) Warn(format string, args ...interface{})  { l.logf(LevelWarn, format, args...) }
func (l *writerLogger) Error(format string, args ...interface{}) { l.logf(LevelError, format, args...) }

type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(format string, args ...interface{}) {}
func (noopLogger) Info(format string, args ...interface{})  {}
func (noopLogger) Warn(format string, args ...interface{})  {}
func (noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   Level
	Message string
}

// BufferLogger captures log messages for test assertions. It is safe for
// concurrent use since poll commands log from their own goroutines.
type BufferLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (l *BufferLogger) add(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add(LevelDebug, format, args...) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add(LevelInfo, format, args...) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add(LevelWarn, format, args...) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add(LevelError, format, args...) }

// Messages returns a copy of everything logged so far.
func (l *BufferLogger) Messages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level Level) bool {
	for _, m := range l.Messages() {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Contains returns true if any captured message contains substr.
func (l *BufferLogger) Contains(substr string) bool {
	for _, m := range l.Messages() {
		if strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}
