package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// NewSlogLogger returns a standalone Logger writing text to w. A nil writer
// means stdout and a nil timezone means UTC. Tests use it with a buffer or
// io.Discard.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = os.Stdout
	}
	if tz == nil {
		tz = time.UTC
	}
	lvl := parseLogLevel(string(level))
	return &moduleLogger{
		logger: slog.New(newTextHandler(w, lvl, tz)),
		level:  lvl,
	}
}

// newTextHandler builds the console handler. Timestamps are dropped.
func newTextHandler(w io.Writer, level slog.Level, _ *time.Location) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.Attr{}
			case slog.LevelKey:
				return slog.String(slog.LevelKey, levelName(a.Value))
			}
			return a
		},
	})
}

// newJSONHandler builds the file handler with RFC3339 timestamps in tz
func newJSONHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.In(tz).Format(time.RFC3339))
				}
			case slog.LevelKey:
				return slog.String(slog.LevelKey, levelName(a.Value))
			}
			return a
		},
	})
}

func levelName(v slog.Value) string {
	if l, ok := v.Any().(slog.Level); ok && l <= traceLevelValue {
		return "TRACE"
	}
	return v.String()
}
