package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger Logger

	programLevel = new(slog.LevelVar) // Info by default
)

func init() {
	logger = NewDefaultLogger()
}

// Logger is the printf-style logging surface used across the module.
type Logger interface {
	Debug(a ...any)
	Debugf(format string, v ...any)
	Info(a ...any)
	Infof(format string, v ...any)
	Warn(a ...any)
	Warnf(format string, v ...any)
	Error(a ...any)
	Errorf(format string, v ...any)

	// Log emits msg at an arbitrary level, used where the level is decided at runtime.
	Log(level slog.Level, msg string)

	With(args ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// NewDefaultLogger returns a text logger writing to stderr.
func NewDefaultLogger() Logger {
	return NewLogger(os.Stderr)
}

// NewLogger returns a text logger writing to w at the process-wide level.
func NewLogger(w io.Writer) Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: programLevel}))}
}

// NewSyslogLogger returns a logger writing to the local syslog daemon under
// the LOG_USER facility.
func NewSyslogLogger(tag string) (Logger, error) {
	w, err := syslog.New(syslog.LOG_USER|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to syslog: %w", err)
	}
	// syslog stamps its own time
	return &slogLogger{l: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: programLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))}, nil
}

// NewFileLogger returns a logger writing to a size-rotated file.
func NewFileLogger(path string) Logger {
	return NewLogger(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // MB
		MaxBackups: 7,
		MaxAge:     30, // days
		Compress:   true,
	})
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return NewLogger(io.Discard)
}

func (s *slogLogger) Debug(a ...any) { s.l.Debug(fmt.Sprint(a...)) }

func (s *slogLogger) Debugf(format string, v ...any) { s.l.Debug(fmt.Sprintf(format, v...)) }

func (s *slogLogger) Info(a ...any) { s.l.Info(fmt.Sprint(a...)) }

func (s *slogLogger) Infof(format string, v ...any) { s.l.Info(fmt.Sprintf(format, v...)) }

func (s *slogLogger) Warn(a ...any) { s.l.Warn(fmt.Sprint(a...)) }

func (s *slogLogger) Warnf(format string, v ...any) { s.l.Warn(fmt.Sprintf(format, v...)) }

func (s *slogLogger) Error(a ...any) { s.l.Error(fmt.Sprint(a...)) }

func (s *slogLogger) Errorf(format string, v ...any) { s.l.Error(fmt.Sprintf(format, v...)) }

func (s *slogLogger) Log(level slog.Level, msg string) {
	s.l.Log(context.Background(), level, msg)
}

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// SetDefault replaces the logger behind the package-level helpers.
func SetDefault(l Logger) {
	logger = l
}

func Default() Logger {
	return logger
}

func Info(a ...any) {
	logger.Info(a...)
}

func Infof(format string, v ...interface{}) {
	logger.Infof(format, v...)
}

func Warnf(format string, v ...interface{}) {
	logger.Warnf(format, v...)
}

func Error(a ...any) {
	logger.Error(a...)
}

func Errorf(format string, v ...interface{}) {
	logger.Errorf(format, v...)
}

func Debug(a ...any) {
	logger.Debug(a...)
}

func Debugf(format string, v ...interface{}) {
	logger.Debugf(format, v...)
}

// Fatalf logs at error level and exits the process with status 1.
func Fatalf(format string, v ...interface{}) {
	logger.Errorf(format, v...)
	os.Exit(1)
}
