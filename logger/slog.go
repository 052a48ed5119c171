package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/phsym/console-slog"
)

// DevelopmentEnv is the environment variable that switches the slog handler
// to a human-readable console handler when set to "development".
const DevelopmentEnv = "DXL_ENV"

// SlogLogger is the log/slog implementation of Logger.
type SlogLogger struct {
	logger *slog.Logger
	// level is shared by a logger and all children created with With.
	level *slog.LevelVar
}

var _ Logger = (*SlogLogger)(nil)

// NewSlog creates a slog backed Logger writing to stdout.
func NewSlog(level Level, addSource bool) Logger {
	return NewSlogWriter(os.Stdout, level, addSource)
}

// NewSlogWriter creates a slog backed Logger writing to w.
//
// Records are JSON with the time under "ts" unless DXL_ENV=development, in
// which case the console handler renders colored single-line records.
func NewSlogWriter(w io.Writer, level Level, addSource bool) Logger {
	lv := new(slog.LevelVar)
	lv.Set(toSlogLevel(level))

	return &SlogLogger{
		logger: slog.New(newHandler(w, lv, addSource)),
		level:  lv,
	}
}

func newHandler(w io.Writer, lv *slog.LevelVar, addSource bool) slog.Handler {
	if os.Getenv(DevelopmentEnv) == "development" {
		return console.NewHandler(w, &console.HandlerOptions{AddSource: true, Level: lv})
	}

	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: addSource,
		Level:     lv,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	})
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.log(slog.LevelDebug, msg, keysAndValues)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.log(slog.LevelInfo, msg, keysAndValues)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.log(slog.LevelWarn, msg, keysAndValues)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues)
}

func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues)
	os.Exit(1)
}

// With returns a child logger sharing the level and output of l.
func (l *SlogLogger) With(keyValues ...any) Logger {
	return &SlogLogger{logger: l.logger.With(keyValues...), level: l.level}
}

func (l *SlogLogger) Level() Level {
	switch l.level.Level() {
	case slog.LevelDebug:
		return DebugLevel
	case slog.LevelInfo:
		return InfoLevel
	case slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func (l *SlogLogger) SetLevel(level Level) {
	l.level.Set(toSlogLevel(level))
}

// log must be called directly by an exported logging method: the caller pc is
// taken at a fixed depth so that AddSource points at the log site.
func (l *SlogLogger) log(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // runtime.Callers, log, exported method
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.logger.Handler().Handle(ctx, r)
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
