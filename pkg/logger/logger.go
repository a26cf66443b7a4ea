// Package logger builds the process-wide slog logger and a few attribute
// helpers shared by the bot, the HTTP server and the event handlers.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config describes how the logger is built.
type Config struct {
	Level   string
	Format  Format
	Output  io.Writer
	Service string
	Version string
}

// ParseLevel parses a string into a slog.Level. Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger. JSON goes to log collectors in production, text is
// easier to read locally.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: ParseLevel(cfg.Level) == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	l := slog.New(handler)
	if cfg.Service != "" {
		l = l.With(slog.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		l = l.With(slog.String("version", cfg.Version))
	}
	return l
}

// ═══════════════════════════════════════════════════════════════════════════
// ATTRIBUTES
// ═══════════════════════════════════════════════════════════════════════════

// TelegramID is the attribute every per-user log line carries.
func TelegramID(id int64) slog.Attr {
	return slog.Int64("telegram_id", id)
}

// Stage records the dialogue stage.
func Stage(stage string) slog.Attr {
	return slog.String("stage", stage)
}

// Err records an error; nil errors produce an empty attribute that slog drops.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Component scopes a logger to a subsystem.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(slog.String("component", name))
}
