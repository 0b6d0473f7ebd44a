package converter

import (
	"context"
	"fmt"
	"log/slog"
)

// =============================================================================
// SLOG LOGGER
// =============================================================================

// SlogLogger adapts a *slog.Logger to Logger. Messages are printf formats.
// New attaches the input file name to the logger of each Converter.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

// With returns a logger that adds attrs to every record.
func (s *SlogLogger) With(attrs ...any) *SlogLogger {
	return &SlogLogger{l: s.l.With(attrs...)}
}

func (s *SlogLogger) Debug(msg string, args ...interface{}) {
	s.log(slog.LevelDebug, msg, args)
}

func (s *SlogLogger) Info(msg string, args ...interface{}) {
	s.log(slog.LevelInfo, msg, args)
}

func (s *SlogLogger) Warn(msg string, args ...interface{}) {
	s.log(slog.LevelWarn, msg, args)
}

func (s *SlogLogger) Error(msg string, args ...interface{}) {
	s.log(slog.LevelError, msg, args)
}

func (s *SlogLogger) log(level slog.Level, msg string, args []interface{}) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	s.l.Log(ctx, level, msg)
}

// =============================================================================
// DEFAULT LOGGER
// =============================================================================

// defaultLogger is a simple logger that prints to stdout.
type defaultLogger struct{}

func (l *defaultLogger) Debug(msg string, args ...interface{}) {
	fmt.Printf("[DEBUG] "+msg+"\n", args...)
}

func (l *defaultLogger) Info(msg string, args ...interface{}) {
	fmt.Printf("[INFO] "+msg+"\n", args...)
}

func (l *defaultLogger) Warn(msg string, args ...interface{}) {
	fmt.Printf("[WARN] "+msg+"\n", args...)
}

func (l *defaultLogger) Error(msg string, args ...interface{}) {
	fmt.Printf("[ERROR] "+msg+"\n", args...)
}
