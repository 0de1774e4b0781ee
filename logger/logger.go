package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger wraps zerolog.Logger to implement the Logger interface.
// Every string and structured field passes through a SensitiveDataFilter first.
type ZeroLogger struct {
	zlog   *zerolog.Logger
	filter *SensitiveDataFilter
}

var _ Logger = (*ZeroLogger)(nil)

var callerMarshalOnce sync.Once

func installCallerMarshal() {
	callerMarshalOnce.Do(func() {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			base := filepath.Base(file)
			parent := filepath.Base(filepath.Dir(file))
			if parent != "." && parent != "" {
				return parent + "/" + base + ":" + strconv.Itoa(line)
			}
			return base + ":" + strconv.Itoa(line)
		}
	})
}

// New creates a logger writing to stdout at the given level.
// If pretty is true, output is formatted for human readability.
// "disabled" switches logging off entirely; unknown levels fall back to info.
func New(level string, pretty bool) *ZeroLogger {
	return NewWithFilter(level, pretty, DefaultFilterConfig())
}

// NewWithFilter creates a stdout logger with a custom sensitive-field configuration.
func NewWithFilter(level string, pretty bool, filterConfig *FilterConfig) *ZeroLogger {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out, level, filterConfig)
}

// NewWithWriter creates a JSON logger writing to w. Mostly useful in tests.
func NewWithWriter(w io.Writer, level string, filterConfig *FilterConfig) *ZeroLogger {
	installCallerMarshal()

	l := zerolog.New(w).With().Timestamp().CallerWithSkipFrameCount(3).Logger()

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zLevel = zerolog.InfoLevel
	}
	l = l.Level(zLevel)

	return &ZeroLogger{zlog: &l, filter: NewSensitiveDataFilter(filterConfig)}
}

// WithContext returns the logger stored in ctx by zerolog, if any.
func (l *ZeroLogger) WithContext(ctx any) Logger {
	if c, ok := ctx.(context.Context); ok {
		zl := zerolog.Ctx(c)
		if zl == nil || zl.GetLevel() == zerolog.Disabled {
			return l
		}
		return &ZeroLogger{zlog: zl, filter: l.filter}
	}
	return l
}

// WithFields returns a logger with additional fields attached to all log entries.
func (l *ZeroLogger) WithFields(fields map[string]any) Logger {
	if l.filter != nil {
		fields = l.filter.FilterFields(fields)
	}
	log := l.zlog.With().Fields(fields).Logger()
	return &ZeroLogger{zlog: &log, filter: l.filter}
}

// Level returns the active zerolog level.
func (l *ZeroLogger) Level() zerolog.Level {
	return l.zlog.GetLevel()
}
