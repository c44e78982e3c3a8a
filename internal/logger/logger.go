package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/celerix-dev/celerix-web/internal/config"
)

// New builds a structured logger writing to w. Timestamps are UTC.
func New(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	addSource := false
	if cfg.Debug {
		level = slog.LevelDebug
		addSource = true
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		h = slog.NewTextHandler(w, opts)
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}
	return slog.New(h), nil
}

// Setup builds the logger and installs it as the slog default, so packages
// logging through slog directly share its handler.
func Setup(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	l, err := New(w, cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	l.Debug("logger.initialized", "level", cfg.Level, "format", cfg.Format)
	return l, nil
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logger: %w", err)
	}
	return level, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
