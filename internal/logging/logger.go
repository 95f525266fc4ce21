// Package logging builds the slog logger used by long-running commands and
// renders notify events through it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/handiism/gallery-downloader/internal/notify"
)

// New creates a slog.Logger based on textual log output.
func New(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	handler := slog.NewTextHandler(w, opts)
	return slog.New(handler)
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Events returns a notify.Handler that logs every event. Verbose events are
// logged at debug level.
func Events(logger *slog.Logger) notify.Handler {
	return func(ev notify.Event) {
		attrs := []any{"kind", string(ev.Kind)}
		if ev.ItemID != "" {
			attrs = append(attrs, "item", ev.ItemID)
		}
		if ev.Path != "" {
			attrs = append(attrs, "path", ev.Path)
		}
		if ev.Total > 0 {
			attrs = append(attrs, "done", ev.Done, "total", ev.Total)
		}
		logger.Log(context.Background(), eventLevel(ev.Level), ev.Message, attrs...)
	}
}

func eventLevel(l notify.Level) slog.Level {
	switch l {
	case notify.LevelVerbose:
		return slog.LevelDebug
	case notify.LevelWarning:
		return slog.LevelWarn
	case notify.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
