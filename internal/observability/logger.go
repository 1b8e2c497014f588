// Package observability defines shared logging primitives.
package observability

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

var defaultLogger atomic.Value

func init() {
	defaultLogger.Store(holder{logger: noopLogger{}})
}

type holder struct{ logger Logger }

// SetLogger overrides the global logger used by the system. A nil logger
// restores the noop default.
func SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	defaultLogger.Store(holder{logger: logger})
}

// Current returns the global logger instance.
func Current() Logger {
	return defaultLogger.Load().(holder).logger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// Level classifies an Event.
type Level string

const (
	// LevelDebug marks diagnostic events.
	LevelDebug Level = "debug"
	// LevelInfo marks routine operational events.
	LevelInfo Level = "info"
	// LevelError marks failures needing attention.
	LevelError Level = "error"
)

// Event is one structured record routed through the global logger. A zero
// Level logs at info.
type Event struct {
	Component string
	Message   string
	Level     Level
	Fields    map[string]any
}

// Log forwards the event to the global logger with fields in stable key
// order.
func Log(evt Event) {
	fields := make([]Field, 0, len(evt.Fields)+1)
	if evt.Component != "" {
		fields = append(fields, Field{Key: "component", Value: evt.Component})
	}
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Value: evt.Fields[k]})
	}

	logger := Current()
	switch evt.Level {
	case LevelDebug:
		logger.Debug(evt.Message, fields...)
	case LevelError:
		logger.Error(evt.Message, fields...)
	default:
		logger.Info(evt.Message, fields...)
	}
}

// TextLogger writes structured lines through the standard library logger.
type TextLogger struct {
	out *log.Logger
}

// NewTextLogger builds a text logger, writing to stderr when out is nil.
func NewTextLogger(out *log.Logger) *TextLogger {
	if out == nil {
		out = log.New(os.Stderr, "", log.LstdFlags|log.LUTC)
	}
	return &TextLogger{out: out}
}

// Debug logs at debug level.
func (l *TextLogger) Debug(msg string, fields ...Field) { l.write("DEBUG", msg, fields) }

// Info logs at info level.
func (l *TextLogger) Info(msg string, fields ...Field) { l.write("INFO", msg, fields) }

// Error logs at error level.
func (l *TextLogger) Error(msg string, fields ...Field) { l.write("ERROR", msg, fields) }

func (l *TextLogger) write(level, msg string, fields []Field) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	l.out.Print(b.String())
}
