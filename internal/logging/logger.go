// Package logging provides structured logging for AIER on top of zap.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Level represents log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger is a structured logger carrying fields
type Logger struct {
	sugar *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	output   io.Writer = os.Stdout
	jsonMode bool
	base     = build()
)

func build() *zap.SugaredLogger {
	var enc zapcore.Encoder
	if jsonMode {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cfg.CallerKey = ""
		if isTerminal(output) {
			cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(cfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(output), level)
	return zap.New(core).Sugar()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// SetLevel sets the global log level
func SetLevel(l Level) {
	level.SetLevel(l.zapLevel())
}

// GetLevel returns the global log level
func GetLevel() Level {
	switch level.Level() {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel:
		return ERROR
	default:
		return INFO
	}
}

// SetOutput sets the output writer
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = build()
}

// SetJSON switches between the console and JSON encoders
func SetJSON(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonMode = enabled
	base = build()
}

// Sync flushes buffered entries
func Sync() {
	_ = current().Sync()
}

// WithField returns a logger with a field added
func WithField(key string, value interface{}) *Logger {
	return &Logger{sugar: current().With(key, value)}
}

// WithFields returns a logger with multiple fields added
func WithFields(fields map[string]interface{}) *Logger {
	return (&Logger{sugar: current()}).WithFields(fields)
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(key, value)}
}

// WithFields adds multiple fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{sugar: l.sugar.With(args...)}
}

// Debug logs a debug message
func Debug(msg string, args ...interface{}) { current().Debugf(msg, args...) }

// Info logs an info message
func Info(msg string, args ...interface{}) { current().Infof(msg, args...) }

// Warn logs a warning message
func Warn(msg string, args ...interface{}) { current().Warnf(msg, args...) }

// Error logs an error message
func Error(msg string, args ...interface{}) { current().Errorf(msg, args...) }

// Logger methods
func (l *Logger) Debug(msg string, args ...interface{}) { l.sugar.Debugf(msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.sugar.Infof(msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.sugar.Warnf(msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.sugar.Errorf(msg, args...) }
