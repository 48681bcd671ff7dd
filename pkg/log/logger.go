package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	perrors "github.com/YuminosukeSato/poiml/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ToLogLevel parses a level name. It panics on an unknown name; configuration
// validation rejects those before this is reached.
func ToLogLevel(level string) Level {
	switch level {
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ZerologProvider hands out zerolog-backed loggers sharing one writer.
type ZerologProvider struct {
	mu    sync.RWMutex
	base  zerolog.Logger
	level Level
}

// NewZerologProvider returns a provider writing JSON lines to stderr.
func NewZerologProvider(level Level) *ZerologProvider {
	return NewZerologProviderWithWriter(os.Stderr, level)
}

// NewZerologProviderWithWriter returns a provider writing JSON lines to w.
func NewZerologProviderWithWriter(w io.Writer, level Level) *ZerologProvider {
	return &ZerologProvider{
		base:  zerolog.New(w).With().Timestamp().Logger(),
		level: level,
	}
}

// NewConsoleProvider returns a provider with human readable output, used by
// the command line when stderr is a terminal.
func NewConsoleProvider(w io.Writer, level Level) *ZerologProvider {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return &ZerologProvider{
		base:  zerolog.New(cw).With().Timestamp().Logger(),
		level: level,
	}
}

func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base.Level(toZerologLevel(p.level))}
}

func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	zl := p.base.Level(toZerologLevel(p.level)).With().Str(ComponentKey, name).Logger()
	return &zerologLogger{zl: zl}
}

// SetLevel affects loggers obtained after the call.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.zl.Debug().Fields(normalizeFields(fields)).Msg(msg)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.zl.Info().Fields(normalizeFields(fields)).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.zl.Warn().Fields(normalizeFields(fields)).Msg(msg)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.zl.Error().Fields(normalizeFields(fields)).Msg(msg)
}

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(normalizeFields(fields)).Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

// normalizeFields turns alternating key/value pairs into the form zerolog's
// Fields accepts. A bare error in key position is logged under ErrAttrKey,
// and the first error carrying a stack adds a stacktrace field.
func normalizeFields(fields []any) []any {
	out := make([]any, 0, len(fields)+2)
	stack := ""
	for i := 0; i < len(fields); i++ {
		if err, ok := fields[i].(error); ok {
			out = append(out, ErrAttrKey, err)
			if stack == "" {
				stack = extractStacktrace(err)
			}
			continue
		}
		if i+1 >= len(fields) {
			out = append(out, "!BADKEY", fields[i])
			break
		}
		key, val := fmt.Sprint(fields[i]), fields[i+1]
		i++
		out = append(out, key, val)
		if err, ok := val.(error); ok && stack == "" {
			stack = extractStacktrace(err)
		}
	}
	if stack != "" {
		out = append(out, StacktraceAttrKey, stack)
	}
	return out
}

func extractStacktrace(err error) string {
	for _, payload := range errors.GetAllSafeDetails(err) {
		if len(payload.SafeDetails) > 0 && payload.SafeDetails[0] != "" {
			return payload.SafeDetails[0]
		}
	}
	return ""
}

// SetupLogger installs a zerolog provider as the package default and routes
// warnings raised through pkg/errors to it.
func SetupLogger(w io.Writer, level string, console bool) LoggerProvider {
	var p *ZerologProvider
	if console {
		p = NewConsoleProvider(w, ToLogLevel(level))
	} else {
		p = NewZerologProviderWithWriter(w, ToLogLevel(level))
	}
	SetProvider(p)

	warnLogger := p.GetLoggerWithName("warnings")
	perrors.SetZerologWarnFunc(func(warning error) {
		warnLogger.Warn(warning.Error(), ErrorTypeKey, fmt.Sprintf("%T", warning), "detail", warning)
	})
	return p
}
