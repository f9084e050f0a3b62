package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	Level     string
	Format    string
	Writer    io.Writer
	Component string
}

// NewLogger builds the process logger. JSON is the default format; "text"
// is meant for interactive terminals.
func NewLogger(opts Options) *slog.Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "text") {
		h = slog.NewTextHandler(writer, handlerOpts)
	} else {
		h = slog.NewJSONHandler(writer, handlerOpts)
	}
	lg := slog.New(h)
	if component := strings.TrimSpace(opts.Component); component != "" {
		lg = lg.With("component", component)
	}
	return lg
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
