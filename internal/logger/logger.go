package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines a standard interface for logging.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	// With returns a child logger that attaches key=value to every entry.
	With(key, value string) Logger
}

// ZerologLogger is a wrapper around zerolog's structured logger.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewLogger creates a new logger instance writing JSON lines to stdout.
func NewLogger(level string) Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a logger writing to w. Unknown levels fall back to info.
func NewLoggerTo(w io.Writer, level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	zl := zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", "hlsfetch").
		Logger()
	return &ZerologLogger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &ZerologLogger{zl: zerolog.Nop()}
}

// Debugf logs a message at the debug level.
func (l *ZerologLogger) Debugf(format string, v ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, v...))
}

// Infof logs a message at the info level.
func (l *ZerologLogger) Infof(format string, v ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, v...))
}

// Warnf logs a message at the warn level.
func (l *ZerologLogger) Warnf(format string, v ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, v...))
}

// Errorf logs a message at the error level.
func (l *ZerologLogger) Errorf(format string, v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, v...))
}

func (l *ZerologLogger) With(key, value string) Logger {
	return &ZerologLogger{zl: l.zl.With().Str(key, value).Logger()}
}
