package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"cryptoSpotBot/internal/ports"

	"github.com/rs/zerolog"
)

// ZerologLogger implements ports.Logger with JSON lines via zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a JSON logger writing to w.
func NewZerologLogger(w io.Writer, level LogLevel) *ZerologLogger {
	zl := zerolog.New(w).With().Timestamp().Logger().Level(zerologLevel(level))
	return &ZerologLogger{logger: zl}
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
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

func (l *ZerologLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.Debug().Fields(mergeFields(fields)).Msg(msg)
}

func (l *ZerologLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.Info().Fields(mergeFields(fields)).Msg(msg)
}

func (l *ZerologLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.Warn().Fields(mergeFields(fields)).Msg(msg)
}

func (l *ZerologLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.logger.Error().Err(err).Fields(mergeFields(fields)).Msg(msg)
}

// New selects the logger implementation by format: "json" for zerolog,
// anything else for the plain text StdLogger. Output goes to stderr.
func New(format, level string) ports.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl := ParseLevel(level)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return NewZerologLogger(os.Stderr, lvl)
	}
	return NewStdLogger(lvl)
}
