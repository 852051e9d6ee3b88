// Package logger wraps zerolog behind the small structured-logging
// surface the rest of the server uses.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"example.com/tryserve/internal/config"
)

// LogFields carries structured key/value pairs attached to a log entry.
type LogFields map[string]interface{}

// Logger emits structured log entries at leveled severities.
type Logger struct {
	zl   zerolog.Logger
	file io.Closer // non-nil when the target is a file we opened
}

// New creates a Logger from the logging configuration. Targets other
// than "stdout" and "stderr" are treated as file paths opened for
// append.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging configuration cannot be nil")
	}

	var out io.Writer
	var file io.Closer
	switch cfg.Target {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Target, err)
		}
		out = f
		file = f
	}

	zl := zerolog.New(out).Level(zerologLevel(cfg.Level)).With().Timestamp().Logger()
	return &Logger{zl: zl, file: file}, nil
}

// NewWithWriter creates a Logger writing to w, mainly for tests.
func NewWithWriter(w io.Writer, level config.LogLevel) *Logger {
	zl := zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewDiscardLogger returns a Logger that drops everything.
func NewDiscardLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func zerologLevel(l config.LogLevel) zerolog.Level {
	switch l {
	case config.LogLevelDebug:
		return zerolog.DebugLevel
	case config.LogLevelWarning:
		return zerolog.WarnLevel
	case config.LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) emit(ev *zerolog.Event, msg string, fields LogFields) {
	if len(fields) > 0 {
		ev = ev.Fields(map[string]interface{}(fields))
	}
	ev.Msg(msg)
}

func (l *Logger) Debug(msg string, fields LogFields) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields LogFields)  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields LogFields)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields LogFields) { l.emit(l.zl.Error(), msg, fields) }

// Close releases the log file when one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
