package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the zerolog output encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// ParseFormat accepts "console" or "json" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatConsole, "":
		return FormatConsole, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

// ZerologAdapter implements Logger using zerolog.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates an adapter writing to stderr in the given format.
func NewZerologAdapter(format Format, level zerolog.Level) *ZerologAdapter {
	return NewZerologAdapterWithWriter(os.Stderr, format, level)
}

// NewZerologAdapterWithWriter creates an adapter writing to w.
func NewZerologAdapterWithWriter(w io.Writer, format Format, level zerolog.Level) *ZerologAdapter {
	out := w
	if format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &ZerologAdapter{logger: logger}
}

// NewZerologAdapterWithLogger creates an adapter wrapping an existing zerolog.Logger.
func NewZerologAdapterWithLogger(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

func (z *ZerologAdapter) Debug(msg string, fields ...Field) { emit(z.logger.Debug(), msg, fields) }
func (z *ZerologAdapter) Info(msg string, fields ...Field)  { emit(z.logger.Info(), msg, fields) }
func (z *ZerologAdapter) Warn(msg string, fields ...Field)  { emit(z.logger.Warn(), msg, fields) }
func (z *ZerologAdapter) Error(msg string, fields ...Field) { emit(z.logger.Error(), msg, fields) }

// With returns a child adapter carrying fields in its zerolog context.
func (z *ZerologAdapter) With(fields ...Field) Logger {
	ctx := z.logger.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, fieldValue(f))
	}
	return &ZerologAdapter{logger: ctx.Logger()}
}

// Logger returns the underlying zerolog.Logger.
func (z *ZerologAdapter) Logger() zerolog.Logger {
	return z.logger
}

func emit(event *zerolog.Event, msg string, fields []Field) {
	// Disabled levels return a nil event.
	if event == nil {
		return
	}
	for _, f := range fields {
		event = addField(event, f)
	}
	event.Msg(msg)
}

// addField adds a Field to a zerolog.Event.
func addField(event *zerolog.Event, f Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return event.Str(f.Key, v)
	case []string:
		return event.Strs(f.Key, v)
	case int:
		return event.Int(f.Key, v)
	case bool:
		return event.Bool(f.Key, v)
	case time.Duration:
		return event.Dur(f.Key, v)
	case error:
		return event.AnErr(f.Key, v)
	default:
		return event.Interface(f.Key, v)
	}
}

func fieldValue(f Field) interface{} {
	if err, ok := f.Value.(error); ok && err != nil {
		return err.Error()
	}
	return f.Value
}
